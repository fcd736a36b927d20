package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageID_Deterministic(t *testing.T) {
	m := Message{Code: "W1", Text: "Credit limit exceeded", Severity: SeverityWarning, Target: "/Orders(1)"}

	id1, err := MessageID(m)
	require.NoError(t, err)
	id2, err := MessageID(m)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64, "hex encoded SHA-256")
}

func TestMessageID_ChangesWithTarget(t *testing.T) {
	a := Message{Text: "x", Severity: SeverityError, Target: "/Orders(1)"}
	b := Message{Text: "x", Severity: SeverityError, Target: "/Orders(2)"}

	assert.NotEqual(t, a.Key(), b.Key())
}

func TestMessageKey_PrefersServerID(t *testing.T) {
	m := Message{ID: "srv-1", Text: "x"}
	assert.Equal(t, "srv-1", m.Key())
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, hashWithDomain(DomainMessage, data), hashWithDomain(DomainValues, data))
}

func TestValuesHash(t *testing.T) {
	h1, err := ValuesHash(Object{"a": Int(1), "b": String("x")})
	require.NoError(t, err)
	h2, err := ValuesHash(Object{"b": String("x"), "a": Int(1)})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	empty, err := ValuesHash(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, empty)
}
