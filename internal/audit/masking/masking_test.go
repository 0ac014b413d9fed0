package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("abcd"))
	assert.Equal(t, "****wxyz", MaskSecret("Xk29a7bQwxyz"))
	assert.Equal(t, "code_****9f3a", MaskSecret("code_a81c9f3a"))
}

func TestMaskMetadata(t *testing.T) {
	masked := MaskMetadata(map[string]any{
		"code":        "Xk29a7bQwxyz",
		"email":       "alice@example.com",
		"nested":      map[string]any{"reset_token": "abcdefgh", "origin": "uaa"},
		"passwordAge": 3,
		" ":           "dropped",
	})

	assert.Equal(t, "****wxyz", masked["code"])
	assert.Equal(t, "alice@example.com", masked["email"])
	assert.Equal(t, map[string]any{"reset_token": "****efgh", "origin": "uaa"}, masked["nested"])
	assert.Equal(t, "****", masked["passwordAge"])
	assert.NotContains(t, masked, " ")
	assert.Nil(t, MaskMetadata(nil))
}

func TestIsSensitiveKey(t *testing.T) {
	assert.True(t, IsSensitiveKey(" Invitation_Code "))
	assert.True(t, IsSensitiveKey("client_secret"))
	assert.False(t, IsSensitiveKey("origin"))
}
