package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"streaming-engine/pkg/config"
	"streaming-engine/pkg/errno"
	"streaming-engine/pkg/restapi"
)

// KeyAccessMiddleware guards encryption key delivery with an HS256 bearer token when
// jwt.secret is configured. The token subject must match the :id route parameter.
func KeyAccessMiddleware(cfg config.JWTConfig) gin.HandlerFunc {
	secret := []byte(cfg.Secret)
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			abort(c, errno.ErrUnauthorized, nil)
			return
		}

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}, opts...)
		if err != nil {
			abort(c, errno.ErrUnauthorized, err)
			return
		}
		if id := c.Param("id"); id != "" && claims.Subject != id {
			abort(c, errno.ErrForbidden, errors.New("token subject does not match stream id"))
			return
		}
		c.Set("key_subject", claims.Subject)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func abort(c *gin.Context, code *errno.Errno, cause error) {
	restapi.Failed(c, errno.NewBizError(code, cause))
	c.Abort()
}
