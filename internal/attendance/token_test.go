package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare token", "abc123XYZ", "abc123XYZ"},
		{"bare token with whitespace", "  abc123XYZ \n", "abc123XYZ"},
		{"json token field", `{"token":"abc123"}`, "abc123"},
		{"json qr_token field", `{"qr_token":"def456"}`, "def456"},
		{"json prefers token over qr_token", `{"token":"abc","qr_token":"def"}`, "abc"},
		{"verification url", "https://app.benevia.app/verify/7f3a?token=tok789", "tok789"},
		{"url without token param", "https://app.benevia.app/verify/7f3a", ""},
		{"invalid json", `{"token":`, ""},
		{"json without token", `{"other":"x"}`, ""},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeToken(tt.raw))
		})
	}
}
