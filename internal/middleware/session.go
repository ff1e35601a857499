package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionGate redirects visitors who already carry the session cookie
// away from the signin and signup pages. The cookie is only consulted
// here; API authorization always runs on the bearer token.
func SessionGate(cookieName, redirectPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if value, err := c.Cookie(cookieName); err == nil && value != "" {
			c.Redirect(http.StatusSeeOther, redirectPath)
			c.Abort()
			return
		}
		c.Next()
	}
}
