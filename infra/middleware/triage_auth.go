package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// LocalOperator is the fiber local holding the authenticated operator name.
const LocalOperator = "operator"

const adminRole = "admin"

// AdminClaims are the claims of an operator token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueAdminToken signs an HS256 operator token valid for ttl.
func IssueAdminToken(secret, operator string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("admin JWT secret not configured")
	}
	if operator == "" {
		return "", errors.New("operator is required")
	}
	now := time.Now()
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AdminAuth validates HS256 operator tokens. An empty secret disables the admin API.
func AdminAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return apperr.Unavailable("admin api")
		}

		tokenString := bearerToken(c.Get("Authorization"))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims := &AdminClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithLeeway(time.Minute))
		if err != nil || !token.Valid {
			logger.WithError(err).Warn("admin JWT validation failed")
			if errors.Is(err, jwt.ErrTokenExpired) {
				return apperr.InvalidToken("token expired")
			}
			return apperr.InvalidToken("invalid token")
		}

		if claims.ExpiresAt == nil || claims.Role != adminRole || claims.Subject == "" {
			return apperr.InvalidToken("token is not an operator token")
		}

		c.Locals(LocalOperator, claims.Subject)
		return c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
