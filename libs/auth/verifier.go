package auth

import (
	"context"
	"errors"
	"strings"
)

// Verifier checks bearer tokens. HS256 tokens are checked against Secret;
// RS256 tokens are resolved through the JWKS client by key id.
type Verifier struct {
	Secret string
	JWKS   *JWKSClient
}

func (v Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	header, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	switch header.Alg {
	case "HS256":
		if v.Secret == "" {
			return nil, ErrInvalidToken
		}
		return ParseAndVerifyHS256(token, v.Secret)
	case "RS256":
		if v.JWKS == nil {
			return nil, ErrInvalidToken
		}
		key, err := v.JWKS.Get(ctx, header.Kid)
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
		return VerifyRS256(token, key)
	default:
		return nil, ErrInvalidToken
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
