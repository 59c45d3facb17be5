package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/slotbook/slotbook/libs/auth"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

const (
	ModeJWT     = "jwt"
	ModeHeaders = "headers"

	HeaderUserID         = "X-User-Id"
	HeaderRole           = "X-Role"
	HeaderPractitionerID = "X-Practitioner-Id"
	HeaderUserEmail      = "X-User-Email"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Directory looks up practitioner profiles by identity-provider user id.
type Directory interface {
	ByUserID(ctx context.Context, userID string) (model.Practitioner, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// IsPractitioner reports whether userID has an active practitioner profile.
func IsPractitioner(ctx context.Context, dir Directory, userID string) (bool, error) {
	p, err := dir.ByUserID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Active, nil
}

// Resolve turns verified claims into a UserRole. A practitioner_id claim is
// trusted as is; otherwise the directory decides, and everyone without an
// active practitioner profile is a client keyed by their numeric user id.
func Resolve(ctx context.Context, dir Directory, claims auth.Claims) (UserRole, error) {
	principal := Principal{UserID: claims.Sub, Email: claims.Email}
	if claims.Sub == "" {
		return nil, ErrUnauthenticated
	}
	if claims.Role == auth.RolePractitioner && claims.PractitionerID > 0 {
		return Practitioner{Principal: principal, PractitionerID: claims.PractitionerID}, nil
	}
	if dir != nil {
		p, err := dir.ByUserID(ctx, claims.Sub)
		switch {
		case err == nil && p.Active:
			return Practitioner{Principal: principal, PractitionerID: p.ID}, nil
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return nil, fmt.Errorf("practitioner lookup: %w", err)
		}
	}
	id, err := strconv.ParseInt(claims.Sub, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrUnauthenticated
	}
	return Client{Principal: principal, ClientID: id}, nil
}

type Config struct {
	Mode      string
	Verifier  TokenVerifier
	Directory Directory
	Logger    *slog.Logger
}

// Middleware attaches the caller's UserRole to the request context.
// Requests without credentials pass through anonymously; handlers decide
// whether a role is required.
func Middleware(cfg Config) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, present, err := credentials(cfg, r)
			if err != nil {
				httpx.WriteFailure(w, http.StatusUnauthorized, "invalid credentials", false)
				return
			}
			if !present {
				next.ServeHTTP(w, r)
				return
			}

			role, err := Resolve(r.Context(), cfg.Directory, claims)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					httpx.WriteFailure(w, http.StatusUnauthorized, "invalid credentials", false)
					return
				}
				if cfg.Logger != nil {
					cfg.Logger.Error("identity resolution failed", "err", err, "user_id", claims.Sub)
				}
				httpx.WriteFailure(w, http.StatusServiceUnavailable, "identity lookup failed", true)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}

func credentials(cfg Config, r *http.Request) (auth.Claims, bool, error) {
	if cfg.Mode == ModeHeaders {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			return auth.Claims{}, false, nil
		}
		claims := auth.Claims{
			Sub:   userID,
			Role:  strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole))),
			Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		}
		if raw := strings.TrimSpace(r.Header.Get(HeaderPractitionerID)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return auth.Claims{}, true, err
			}
			claims.PractitionerID = id
		}
		return claims, true, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Claims{}, false, nil
	}
	token, ok := auth.BearerToken(header)
	if !ok || cfg.Verifier == nil {
		return auth.Claims{}, true, auth.ErrInvalidToken
	}
	claims, err := cfg.Verifier.Verify(r.Context(), token)
	if err != nil {
		return auth.Claims{}, true, err
	}
	return *claims, true, nil
}
