package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for an algorithm migration.
const (
	DomainMessage = "opflow/message/v1"
	DomainValues  = "opflow/values/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MessageID computes a stable id for a message the server sent without one.
// Two deliveries of the same (code, text, severity, target) across retry
// rounds get the same id, so they are surfaced only once.
func MessageID(m Message) (string, error) {
	obj := Object{
		"code":     String(m.Code),
		"severity": String(string(m.Severity)),
		"target":   String(m.Target),
		"text":     String(m.Text),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("MessageID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMessage, canonical), nil
}

// ValuesHash fingerprints a parameter value set, e.g. for journaling which
// values a submission carried without storing them twice.
func ValuesHash(values Object) (string, error) {
	if values == nil {
		values = Object{}
	}
	canonical, err := MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("ValuesHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValues, canonical), nil
}
