package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap copies metadata with credential-like values masked.
// Nested maps and slices are walked.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	if key == "code" || key == "state" {
		return true
	}
	for _, marker := range []string{
		"secret",
		"token",
		"authorization",
		"password",
		"cipher",
		"credential",
		"session_id",
	} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

// isTraceabilityKey lists keys that look sensitive but only carry ids or
// flags needed to follow a run in the logs.
func isTraceabilityKey(key string) bool {
	switch key {
	case "run_id",
		"target_site_id",
		"site_uri",
		"request_id",
		"idempotency_key",
		"driver",
		"token_type",
		"session_id_set",
		"auth_state":
		return true
	default:
		return false
	}
}
