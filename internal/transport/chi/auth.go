package chi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/logger"
)

// UserHeader carries the requester id when JWT auth is off.
const UserHeader = "X-User-Id"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// AuthConfig selects how requests are authenticated.
//
// With JWTSecret set, an HS256 bearer token is required and its subject is the
// requester. Otherwise the requester comes from the X-User-Id header; APIKeys,
// when set, additionally require a matching static bearer key.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	APIKeys   []string
}

type requesterKey struct{}

// WithRequester stores the authenticated user id in ctx.
func WithRequester(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, requesterKey{}, userID)
}

// RequesterFromContext returns the authenticated user id, or "".
func RequesterFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requesterKey{}).(string)
	return id
}

// AuthMiddleware identifies the requester.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}
	parser := newJWTParser(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			var userID string
			var err error
			if cfg.JWTSecret != "" {
				userID, err = subjectFromJWT(r, parser, []byte(cfg.JWTSecret))
			} else {
				userID, err = userFromHeader(r, validKeys)
			}
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			ctx := WithRequester(r.Context(), userID)
			ctx = logger.With(ctx, zap.String("requester", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newJWTParser(cfg AuthConfig) *jwt.Parser {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return jwt.NewParser(opts...)
}

func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", errors.New("missing authorization header")
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", errors.New("authorization header must use Bearer scheme")
	}
	return strings.TrimSpace(auth[len(bearerPrefix):]), nil
}

func subjectFromJWT(r *http.Request, parser *jwt.Parser, secret []byte) (string, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return "", err
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return secret, nil }); err != nil {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func userFromHeader(r *http.Request, validKeys map[string]struct{}) (string, error) {
	if len(validKeys) > 0 {
		token, err := bearerToken(r)
		if err != nil {
			return "", err
		}
		if _, ok := validKeys[token]; !ok {
			return "", errors.New("invalid api key")
		}
	}
	userID := strings.TrimSpace(r.Header.Get(UserHeader))
	if userID == "" {
		return "", errors.New("missing " + UserHeader + " header")
	}
	return userID, nil
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", detail)
}
