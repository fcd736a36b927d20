// Package ir provides the foundational types shared by every opflow package.
//
// This package contains value types, operation and entity descriptions, messages
// and the error taxonomy. All other internal packages import ir; ir imports
// nothing internal, so it stays the bottom layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types in values - decimals travel as strings
//   - Canonical JSON (RFC 8785, NFC strings) is the only input to content hashes
//   - Entity identity is the entity path ("/Orders(1)"), never a pointer
//   - All JSON tags use snake_case
package ir
