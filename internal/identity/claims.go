package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var errNotJWT = errors.New("not a JWT")

// Claims decodes the payload of a JWT without verifying it. Opaque tokens
// (such as the local session tokens) return an error.
func Claims(token string) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errNotJWT
	}
	b, err := decodeB64URL(parts[1])
	if err != nil {
		return nil, err
	}
	var claims map[string]any
	if err := json.Unmarshal(b, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func decodeB64URL(s string) ([]byte, error) {
	dec, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, err
	}
	return dec, nil
}
