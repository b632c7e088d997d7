package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "surface"

// Locals keys set by the auth middleware.
const (
	localUserID   = "user_id"
	localTenantID = "tenant_id"
	localRole     = "role"
)

// Roles carried in the token. Admins may apply approval-required status
// transitions directly; analysts must go through an approval request.
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// IssueToken signs an HS256 token binding a user to a tenant and role.
func IssueToken(secret, userID, tenantID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":       issuer,
		"sub":       userID,
		"tenant_id": tenantID,
		"role":      role,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// authMiddleware validates the bearer token and stores the user, tenant,
// and role claims in the request locals. Expiry is enforced by the parser.
func authMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody("missing bearer token"))
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody("invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody("invalid token claims"))
		}
		tenantID, _ := claims["tenant_id"].(string)
		userID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if tenantID == "" || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody("token missing tenant or subject"))
		}

		c.Locals(localUserID, userID)
		c.Locals(localTenantID, tenantID)
		c.Locals(localRole, role)
		return c.Next()
	}
}

// requireTenant rejects requests whose token tenant does not match the
// path tenant. Cross-tenant access is a 404, not a 403: resources of other
// tenants read as absent.
func requireTenant(c *fiber.Ctx) error {
	if c.Params("tenant") != c.Locals(localTenantID) {
		return c.Status(fiber.StatusNotFound).JSON(errorBody("not found"))
	}
	return c.Next()
}

func tenantID(c *fiber.Ctx) string {
	v, _ := c.Locals(localTenantID).(string)
	return v
}

func userID(c *fiber.Ctx) string {
	v, _ := c.Locals(localUserID).(string)
	return v
}

func role(c *fiber.Ctx) string {
	v, _ := c.Locals(localRole).(string)
	return v
}
