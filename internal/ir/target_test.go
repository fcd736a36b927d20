package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameterOfTarget(t *testing.T) {
	params := []string{"Comment", "Priority"}

	tests := []struct {
		name   string
		target string
		want   string
		ok     bool
	}{
		{"client built", ParameterTarget("OrderService.approve", "Comment"), "Comment", true},
		{"entity prefixed", "/Orders(1)/OrderService.approve/Priority", "Priority", true},
		{"unqualified with parens", "/approve(...)/Comment", "Comment", true},
		{"unknown parameter", "/Orders(1)/OrderService.approve/Other", "", false},
		{"other operation", "/Orders(1)/OrderService.reject/Comment", "", false},
		{"entity only", "/Orders(1)", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParameterOfTarget(tt.target, "OrderService.approve", params)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetsEntity(t *testing.T) {
	assert.True(t, TargetsEntity("/Orders(1)", "/Orders(1)"))
	assert.True(t, TargetsEntity("/Orders(1)/Amount", "/Orders(1)"))
	assert.False(t, TargetsEntity("/Orders(10)", "/Orders(1)"))
	assert.False(t, TargetsEntity("", "/Orders(1)"))
}
