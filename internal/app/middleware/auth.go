package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"mlbilling/internal/app/config"
	"mlbilling/internal/app/ds"
	"mlbilling/internal/app/dto"
	"mlbilling/internal/app/role"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Blacklist remembers revoked tokens until they expire.
type Blacklist interface {
	WriteJWTToBlacklist(ctx context.Context, jwtStr string, jwtTTL time.Duration) error
	IsJWTBlacklisted(ctx context.Context, jwtStr string) (bool, error)
}

type AuthMiddleware struct {
	Blacklist Blacklist
	Config    *config.Config
}

func NewAuthMiddleware(blacklist Blacklist, cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{
		Blacklist: blacklist,
		Config:    cfg,
	}
}

// BearerToken returns the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(header)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Status: "fail", Message: message})
}

// WithAuthCheck admits requests with a valid, unrevoked token whose role is
// one of assignedRoles. No roles means any authenticated user.
func (am *AuthMiddleware) WithAuthCheck(assignedRoles ...role.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		jwtStr := BearerToken(c)
		if jwtStr == "" {
			abort(c, http.StatusUnauthorized, "authorization header missing")
			return
		}

		revoked, err := am.Blacklist.IsJWTBlacklisted(c.Request.Context(), jwtStr)
		if err != nil {
			logrus.WithError(err).Error("token blacklist lookup failed")
			abort(c, http.StatusInternalServerError, "could not verify token")
			return
		}
		if revoked {
			abort(c, http.StatusUnauthorized, "token has been revoked")
			return
		}

		claims, err := am.ParseToken(jwtStr)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		if len(assignedRoles) > 0 && !hasRequiredRole(claims.Role, assignedRoles) {
			abort(c, http.StatusForbidden, "insufficient role")
			return
		}

		SetCurrentUser(c, claims.UserID, claims.Role)
		c.Next()
	}
}

// ParseToken validates a signed token and returns its claims.
func (am *AuthMiddleware) ParseToken(tokenString string) (*ds.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ds.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != am.signingMethod().Alg() {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(am.Config.JWT.Token), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ds.JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

func (am *AuthMiddleware) signingMethod() jwt.SigningMethod {
	if am.Config.JWT.SigningMethod == nil {
		return jwt.SigningMethodHS256
	}
	return am.Config.JWT.SigningMethod
}

// IssueToken signs a token for the user that expires after the configured
// lifetime. Every token carries a unique id so it can be revoked alone.
func (am *AuthMiddleware) IssueToken(userID uint, r role.Role, now time.Time) (string, error) {
	token := jwt.NewWithClaims(am.signingMethod(), ds.JWTClaims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			ExpiresAt: now.Add(am.Config.JWT.ExpiresIn).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    "mlbilling",
		},
		UserID: userID,
		Role:   r,
	})
	return token.SignedString([]byte(am.Config.JWT.Token))
}

func hasRequiredRole(userRole role.Role, requiredRoles []role.Role) bool {
	for _, requiredRole := range requiredRoles {
		if userRole == requiredRole {
			return true
		}
	}
	return false
}
