package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// RoleAdmin guards catalog writes, imports and file management.
const RoleAdmin = "admin"

// Claims represents the JWT claims
type Claims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AuthMiddleware validates the bearer token and stores the caller's identity
// and roles in the gin context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header is required")
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN_FORMAT", "Authorization header must be in format: Bearer <token>")
			return
		}

		token, err := jwt.ParseWithClaims(tokenParts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			abort(c, http.StatusUnauthorized, "INVALID_CLAIMS", "Invalid token claims")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_roles", claims.Roles)
		c.Next()
	}
}

// RequireRole lets the request through when the caller has requiredRole or
// super_admin.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, exists := c.Get("user_roles")
		if !exists {
			abort(c, http.StatusForbidden, "NO_ROLES", "User roles not found")
			return
		}
		userRoles, ok := roles.([]string)
		if !ok {
			abort(c, http.StatusForbidden, "INVALID_ROLES", "Invalid user roles format")
			return
		}
		if !slices.Contains(userRoles, requiredRole) && !slices.Contains(userRoles, "super_admin") {
			abort(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", fmt.Sprintf("Required role: %s", requiredRole))
			return
		}
		c.Next()
	}
}

// DevelopmentAuth grants the admin role to every request. Only wired outside
// production.
func DevelopmentAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", "dev-user")
		c.Set("user_email", "dev@localhost")
		c.Set("user_roles", []string{RoleAdmin})
		c.Next()
	}
}

// GenerateToken signs claims with the HS256 secret. Used by tests and local
// tooling.
func GenerateToken(jwtSecret string, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
