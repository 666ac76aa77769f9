package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRedirectSafe(t *testing.T) {
	baseURL := "http://localhost:8080"

	tests := []struct {
		name     string
		redirect string
		want     bool
	}{
		{"empty", "", true},
		{"relative path", "/link", true},
		{"relative with query", "/claim/ABC123?from=email", true},
		{"protocol relative", "//evil.com", false},
		{"backslash trick", "/\\evil.com", false},
		{"header injection", "/link\r\nSet-Cookie: x=1", false},
		{"same host absolute", "http://localhost:8080/link", true},
		{"foreign host", "http://evil.com/link", false},
		{"javascript scheme", "javascript:alert(1)", false},
		{"data scheme", "data:text/html,hi", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRedirectSafe(tt.redirect, baseURL))
		})
	}
}
