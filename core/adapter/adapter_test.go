package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderError_Message(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"object envelope", 429, `{"error": {"message": "rate limited"}}`, "rate limited"},
		{"string envelope", 401, `{"error": "invalid key"}`, "invalid key"},
		{"empty message falls back", 503, `{"error": {"message": ""}}`, "Service Unavailable"},
		{"non json falls back", 502, `<html>bad gateway</html>`, "Bad Gateway"},
		{"empty body falls back", 500, ``, "Internal Server Error"},
		{"unknown status", 599, ``, "HTTP 599"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := NewProviderError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.want, perr.Message)
		})
	}
}

func TestNew_Registry(t *testing.T) {
	for _, name := range Names() {
		p, err := New(name, Options{})
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err := New("claude", Options{})
	assert.Error(t, err)
}
