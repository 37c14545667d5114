package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userKey = "user"

// Claims is the bearer token payload.
type Claims struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for user, valid for ttl.
func IssueToken(secret string, user domain.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Authenticator verifies bearer tokens and resolves the caller from storage.
type Authenticator struct {
	secret []byte
	users  app.UserRepository
}

func NewAuthenticator(secret string, users app.UserRepository) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users}
}

func (a *Authenticator) parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// bearer reads the token from the Authorization header, or from the token
// query parameter for websocket clients that cannot set headers.
func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("token")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Require rejects requests without a valid token for an existing user.
func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			fail(c, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		claims, err := a.parse(raw)
		if err != nil {
			fail(c, http.StatusUnauthorized, "invalid token", nil)
			return
		}
		user, err := a.users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				fail(c, http.StatusUnauthorized, "unknown user", nil)
				return
			}
			respondError(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireAdmin must run after Require.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFrom(c)
		if !ok || !user.IsAdmin() {
			respondError(c, domain.ErrAdminRequired)
			return
		}
		c.Next()
	}
}

func userFrom(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}

func currentUser(c *gin.Context) domain.User {
	u, _ := userFrom(c)
	return u
}
