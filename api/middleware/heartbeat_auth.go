package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HeartbeatTokenAuth validates the shared heartbeat secret from the
// X-Heartbeat-Token header. An empty configured secret disables the check.
func HeartbeatTokenAuth(secret string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		token := c.GetHeader("X-Heartbeat-Token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Heartbeat token required",
			})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			log.WithField("client_ip", c.ClientIP()).Warn("Invalid heartbeat token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid heartbeat token",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
