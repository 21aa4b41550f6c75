package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	UserRolesKey   contextKey = "user_roles"
	TokenIDKey     contextKey = "token_id"
	TokenExpiryKey contextKey = "token_expiry"
)

type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	// Revocations, when set, rejects tokens whose jti was revoked at logout.
	Revocations RevocationStore
	// Skipper lets anonymous requests through on public routes. A bearer
	// token sent to a public route is still validated.
	Skipper func(c echo.Context) bool
	Logger  zerolog.Logger
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	parser := jwt.NewParser(parserOptions(cfg)...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if cfg.Skipper != nil && cfg.Skipper(c) {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			if cfg.Revocations != nil && claims.ID != "" {
				revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
				if err != nil {
					cfg.Logger.Warn().Err(err).Msg("token revocation lookup failed")
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
				}
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserRolesKey, claims.Roles)
			ctx = context.WithValue(ctx, TokenIDKey, claims.ID)
			if claims.ExpiresAt != nil {
				ctx = context.WithValue(ctx, TokenExpiryKey, claims.ExpiresAt.Time)
			}
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func parserOptions(cfg JWTConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return opts
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// TokenFromContext returns the jti and expiry of the bearer token, used to
// revoke it on logout.
func TokenFromContext(ctx context.Context) (string, time.Time) {
	jti, _ := ctx.Value(TokenIDKey).(string)
	exp, _ := ctx.Value(TokenExpiryKey).(time.Time)
	return jti, exp
}
