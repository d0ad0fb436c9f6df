package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gighub/internal/engine/policy"
	"gighub/internal/repo"
)

// AuthConfig controls how callers are identified.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string
	// AllowAPIKeys also accepts X-Api-Key headers backed by hashed keys
	// in the database.
	AllowAPIKeys bool
	Logger       *slog.Logger
}

type principalKey struct{}

// principalFrom returns the authenticated actor stored by the middleware.
func principalFrom(ctx context.Context) (policy.Actor, bool) {
	actor, ok := ctx.Value(principalKey{}).(policy.Actor)
	return actor, ok
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

// SignToken mints a bearer token for userID. Used by the CLI and tests;
// there is no login endpoint here.
func SignToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(secret, raw string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	var claims jwtClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// newAuthMiddleware resolves the caller to a Principal. The user record
// is always loaded fresh, so role changes and deactivations take effect
// on the next request.
func newAuthMiddleware(cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID, err := resolveUserID(cfg, r, req)
			if err != nil {
				respondStatusError(w, http.StatusUnauthorized, err.Error())
				return
			}
			u, err := r.GetUser(req.Context(), userID)
			if errors.Is(err, repo.ErrNotFound) {
				respondStatusError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			if err != nil {
				logger.Error("auth lookup failed", "error", err)
				respondStatusError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !u.Active {
				respondStatusError(w, http.StatusForbidden, "account is deactivated")
				return
			}
			actor := policy.Actor{ID: u.ID, Role: u.Role}
			ctx := context.WithValue(req.Context(), principalKey{}, actor)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func resolveUserID(cfg AuthConfig, r repo.Repo, req *http.Request) (string, error) {
	if auth := req.Header.Get("Authorization"); auth != "" {
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return "", errors.New("authorization header is not a bearer token")
		}
		userID, err := parseToken(cfg.JWTSecret, strings.TrimSpace(raw))
		if err != nil {
			return "", errors.New("invalid token")
		}
		return userID, nil
	}
	if key := req.Header.Get("X-Api-Key"); key != "" && cfg.AllowAPIKeys {
		k, err := r.GetAPIKeyByHash(req.Context(), repo.HashAPIKey(key))
		if err != nil {
			return "", errors.New("invalid api key")
		}
		return k.UserID, nil
	}
	return "", errors.New("missing credentials")
}

func respondStatusError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}

// requireActor is for handlers registered straight on the router.
func requireActor(w http.ResponseWriter, req *http.Request) (policy.Actor, bool) {
	actor, ok := principalFrom(req.Context())
	if !ok {
		respondStatusError(w, http.StatusUnauthorized, "missing credentials")
		return policy.Actor{}, false
	}
	return actor, true
}
