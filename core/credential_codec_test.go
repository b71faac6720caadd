package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestJSONCredentialCodec_WritesDriverDataEnvelope(t *testing.T) {
	expires := time.Unix(1767225600, 0).UTC()
	payload, err := JSONCredentialCodec{}.Encode(AccessToken{
		AccessToken:  "tok",
		TokenType:    "bearer",
		RefreshToken: "ref",
		ExpiresAt:    &expires,
		Extra:        map[string]any{"created_at": float64(42)},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	raw := map[string]map[string]any{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	token, ok := raw["accessToken"]
	if !ok {
		t.Fatalf("expected accessToken envelope, got %s", payload)
	}
	if token["access_token"] != "tok" || token["expires"] != float64(1767225600) || token["created_at"] != float64(42) {
		t.Fatalf("unexpected token fields %#v", token)
	}

	decoded, err := JSONCredentialCodec{}.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AccessToken != "tok" || decoded.RefreshToken != "ref" || decoded.ExpiresAt == nil || !decoded.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected decoded token %+v", decoded)
	}
	if decoded.Extra["created_at"] != float64(42) {
		t.Fatalf("expected extra fields to survive, got %#v", decoded.Extra)
	}
}

func TestJSONCredentialCodec_RejectsEmptyToken(t *testing.T) {
	if _, err := (JSONCredentialCodec{}).Encode(AccessToken{}); err == nil {
		t.Fatalf("expected empty token to be rejected")
	}
	if _, err := (JSONCredentialCodec{}).Decode([]byte(`{"accessToken":{"access_token":""}}`)); err == nil {
		t.Fatalf("expected empty persisted token to be rejected")
	}
	if _, err := (JSONCredentialCodec{}).Decode([]byte(`{"other":{}}`)); err == nil {
		t.Fatalf("expected missing envelope to be rejected")
	}
}
