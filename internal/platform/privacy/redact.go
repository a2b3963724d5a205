package privacy

import (
	"encoding/json"
	"strings"
)

// RedactedPlaceholder replaces every sensitive value.
const RedactedPlaceholder = "***HIDDEN***"

var sensitiveFragments = []string{"password", "token", "secret", "key"}

// IsSensitiveField reports whether a field name contains a sensitive fragment,
// case-insensitively. "api_key", "refreshToken" and "client_secret" all match.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Redact returns a deep copy of a decoded JSON value with every sensitive
// field's value replaced by RedactedPlaceholder. The input is not modified.
func Redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if IsSensitiveField(k) {
				out[k] = RedactedPlaceholder
				continue
			}
			out[k] = Redact(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = Redact(inner)
		}
		return out
	default:
		return v
	}
}

// RedactJSON decodes body and redacts it. ok is false when body is not valid
// JSON; callers must then not log the raw body.
func RedactJSON(body []byte) (redacted any, ok bool) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, false
	}
	return Redact(decoded), true
}

// RedactForm redacts url-encoded form values the same way.
func RedactForm(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if IsSensitiveField(k) {
			out[k] = RedactedPlaceholder
			continue
		}
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}
