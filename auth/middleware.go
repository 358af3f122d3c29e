package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callerKey = "caller"

// Authenticate resolves the bearer token into a Caller. Requests without a
// valid token continue anonymously; handlers decide what that means.
func Authenticate(tokens *TokenService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.Next()
			return
		}

		caller, err := tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			log.Debug("rejected bearer token", zap.String("path", c.FullPath()), zap.Error(err))
			c.Next()
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the authenticated caller, or nil.
func CallerFrom(c *gin.Context) *Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*Caller)
	return caller
}
