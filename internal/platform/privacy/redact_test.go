package privacy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSensitiveField(t *testing.T) {
	for _, name := range []string{"password", "Password", "new_password", "token", "refreshToken", "client_secret", "api_key", "KEY"} {
		assert.True(t, IsSensitiveField(name), name)
	}
	for _, name := range []string{"email", "username", "appointment_id", ""} {
		assert.False(t, IsSensitiveField(name), name)
	}
}

func TestRedactJSON(t *testing.T) {
	t.Run("password and token never survive", func(t *testing.T) {
		body := []byte(`{"password": "x", "token": "y", "email": "a@b.c"}`)
		redacted, ok := RedactJSON(body)
		require.True(t, ok)

		out, err := json.Marshal(redacted)
		require.NoError(t, err)
		assert.NotContains(t, string(out), `"x"`)
		assert.NotContains(t, string(out), `"y"`)
		assert.Equal(t, map[string]any{
			"password": RedactedPlaceholder,
			"token":    RedactedPlaceholder,
			"email":    "a@b.c",
		}, redacted)
	})

	t.Run("nested objects and arrays", func(t *testing.T) {
		body := []byte(`{"user": {"api_key": "k", "name": "n"}, "items": [{"secret": "s"}, 1]}`)
		redacted, ok := RedactJSON(body)
		require.True(t, ok)
		assert.Equal(t, map[string]any{
			"user":  map[string]any{"api_key": RedactedPlaceholder, "name": "n"},
			"items": []any{map[string]any{"secret": RedactedPlaceholder}, float64(1)},
		}, redacted)
	})

	t.Run("sensitive object values are masked whole", func(t *testing.T) {
		redacted, ok := RedactJSON([]byte(`{"tokens": {"access": "a"}}`))
		require.True(t, ok)
		assert.Equal(t, map[string]any{"tokens": RedactedPlaceholder}, redacted)
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := map[string]any{"password": "x"}
		_ = Redact(in)
		assert.Equal(t, "x", in["password"])
	})

	t.Run("invalid json", func(t *testing.T) {
		_, ok := RedactJSON([]byte(`{"password": `))
		assert.False(t, ok)
	})
}

func TestRedactForm(t *testing.T) {
	out := RedactForm(map[string][]string{
		"password": {"hunter2"},
		"username": {"ali"},
		"tags":     {"a", "b"},
	})
	assert.Equal(t, RedactedPlaceholder, out["password"])
	assert.Equal(t, "ali", out["username"])
	assert.Equal(t, []string{"a", "b"}, out["tags"])
}
