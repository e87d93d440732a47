package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/bouncer/logging"
)

// AdminClaims are the claims carried by admin API tokens.
type AdminClaims struct {
	jwt.StandardClaims
	Groups   []string `json:"groups"`
	Username string   `json:"username,omitempty"`
}

// GroupAuthMiddleware accepts HS256 bearer tokens signed with secret whose
// groups claim contains one of requiredGroups.
func GroupAuthMiddleware(secret string, requiredGroups []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			logger.Warn("No Authorization token provided", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := ParseAdminToken(tokenString, secret)
		if err != nil {
			logger.Warn("Error parsing token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if !isUserInGroups(claims, requiredGroups) {
			logger.Warn("User does not have the required groups",
				zap.String("sub", claims.Subject),
				zap.Strings("groups", claims.Groups))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		c.Set("requestingUserID", claims.Subject)
		c.Set("requestingUser", claims.Username)
		c.Next()
	}
}

func ParseAdminToken(tokenString, secret string) (*AdminClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("admin token secret not configured")
	}
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token or wrong claims type")
}

func isUserInGroups(claims *AdminClaims, requiredGroups []string) bool {
	for _, group := range requiredGroups {
		for _, userGroup := range claims.Groups {
			if userGroup == group {
				return true
			}
		}
	}
	return false
}
