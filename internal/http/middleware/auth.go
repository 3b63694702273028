// README: JWT auth middleware; yields the verified actor for lifecycle calls.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"trego/internal/modules/user"
	"trego/internal/types"
)

const actorKey = "actor"

type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UserSource loads the acting user once the token checks out.
type UserSource interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
}

// Auth validates the bearer token and attaches the actor to the request
// context. The lifecycle engine trusts the (user_id, role) pair from here on.
func Auth(secret []byte, users UserSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validateToken(c.GetHeader("Authorization"), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		actor, err := users.Get(c.Request.Context(), types.ID(claims.UserID))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// Actor returns the authenticated user set by Auth.
func Actor(c *gin.Context) *user.User {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*user.User)
	return actor
}

// GenerateToken issues an HS256 token for a user. The real identity provider
// lives outside this service; this covers local development and tests.
func GenerateToken(secret []byte, userID types.ID, role user.Role) (string, error) {
	claims := Claims{
		UserID: int64(userID),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func validateToken(header string, secret []byte) (*Claims, error) {
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == "" {
		return nil, errors.New("missing token")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
