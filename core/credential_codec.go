package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatDriverData = "driver_data_json"
	CredentialPayloadVersionV1        = 1

	driverDataTokenKey = "accessToken"
)

// CredentialCodec converts an access token to and from the persisted
// driver-data payload.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(token AccessToken) ([]byte, error)
	Decode(payload []byte) (AccessToken, error)
}

// JSONCredentialCodec writes {"accessToken": {"access_token": ..., "expires": ...}}.
// Unknown token fields round-trip through AccessToken.Extra.
type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatDriverData
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

var reservedTokenKeys = map[string]struct{}{
	"access_token":  {},
	"token_type":    {},
	"refresh_token": {},
	"expires":       {},
}

func (JSONCredentialCodec) Encode(token AccessToken) ([]byte, error) {
	if token.IsZero() {
		return nil, fmt.Errorf("core: access token is required")
	}
	fields := map[string]any{}
	for key, value := range token.Extra {
		if _, reserved := reservedTokenKeys[key]; reserved {
			continue
		}
		fields[key] = value
	}
	fields["access_token"] = strings.TrimSpace(token.AccessToken)
	if tokenType := strings.TrimSpace(token.TokenType); tokenType != "" {
		fields["token_type"] = tokenType
	}
	if refresh := strings.TrimSpace(token.RefreshToken); refresh != "" {
		fields["refresh_token"] = refresh
	}
	if token.ExpiresAt != nil {
		fields["expires"] = token.ExpiresAt.Unix()
	}

	encoded, err := json.Marshal(map[string]any{driverDataTokenKey: fields})
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (AccessToken, error) {
	if len(payload) == 0 {
		return AccessToken{}, fmt.Errorf("core: credential payload is empty")
	}
	envelope := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return AccessToken{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	raw, ok := envelope[driverDataTokenKey]
	if !ok {
		return AccessToken{}, fmt.Errorf("core: credential payload has no %s entry", driverDataTokenKey)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return AccessToken{}, fmt.Errorf("core: decode access token: %w", err)
	}

	token := AccessToken{
		AccessToken:  stringField(fields, "access_token"),
		TokenType:    stringField(fields, "token_type"),
		RefreshToken: stringField(fields, "refresh_token"),
		Extra:        map[string]any{},
	}
	if expires, ok := fields["expires"].(float64); ok && expires > 0 {
		expiresAt := time.Unix(int64(expires), 0).UTC()
		token.ExpiresAt = &expiresAt
	}
	for key, value := range fields {
		if _, reserved := reservedTokenKeys[key]; reserved {
			continue
		}
		token.Extra[key] = value
	}
	if token.IsZero() {
		return AccessToken{}, fmt.Errorf("core: credential payload has an empty access token")
	}
	return token, nil
}

func stringField(fields map[string]any, key string) string {
	value, ok := fields[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
