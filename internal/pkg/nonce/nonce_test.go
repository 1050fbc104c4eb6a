package nonce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceRoundTrip(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)

	tok, err := iss.Issue("topic-new", "u:1")
	require.NoError(t, err)

	assert.NoError(t, iss.Verify(tok, "topic-new", "u:1"))
	assert.ErrorIs(t, iss.Verify(tok, "reply-new", "u:1"), ErrInvalid)
	assert.ErrorIs(t, iss.Verify(tok, "topic-new", "u:2"), ErrInvalid)
	assert.ErrorIs(t, iss.Verify("", "topic-new", "u:1"), ErrInvalid)
}

func TestNonceExpires(t *testing.T) {
	iss := NewIssuer("secret", time.Minute)
	start := time.Now()
	iss.now = func() time.Time { return start }

	tok, err := iss.Issue("reply-new", "ip:10.0.0.1")
	require.NoError(t, err)

	iss.now = func() time.Time { return start.Add(2 * time.Minute) }
	assert.ErrorIs(t, iss.Verify(tok, "reply-new", "ip:10.0.0.1"), ErrInvalid)
}

func TestNonceOtherSecret(t *testing.T) {
	tok, err := NewIssuer("a", time.Hour).Issue("x", "u:1")
	require.NoError(t, err)
	assert.ErrorIs(t, NewIssuer("b", time.Hour).Verify(tok, "x", "u:1"), ErrInvalid)
}
