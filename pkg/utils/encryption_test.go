package utils

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal(`{"access_token":"abc"}`)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "abc")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"abc"}`, plain)
}

func TestSealer_Empty(t *testing.T) {
	s, err := NewRandomSealer()
	require.NoError(t, err)

	sealed, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := s.Open("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestSealer_WrongKey(t *testing.T) {
	a, err := NewRandomSealer()
	require.NoError(t, err)
	b, err := NewRandomSealer()
	require.NoError(t, err)

	sealed, err := a.Seal("secret")
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.Error(t, err)

	_, err = a.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestNewSealer_BadKeys(t *testing.T) {
	_, err := NewSealer("")
	assert.Error(t, err)
	_, err = NewSealer("%%%")
	assert.Error(t, err)
	_, err = NewSealer(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}
