package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"hirenotify/internal/common"

	"github.com/gin-gonic/gin"
)

// callerKey holds a fingerprint of the authenticated API key.
const callerKey = "caller"

// Auth returns middleware that validates the X-API-Key header (or a Bearer
// token) against configured keys. This is service-to-service authentication
// for the hiring pipeline, not end-user auth.
func Auth(validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := apiKeyFrom(c.Request)
		if apiKey == "" {
			common.Error(c, http.StatusUnauthorized, "missing X-API-Key header")
			c.Abort()
			return
		}

		if !isValidKey(apiKey, validKeys) {
			common.Error(c, http.StatusUnauthorized, "invalid API key")
			c.Abort()
			return
		}

		c.Set(callerKey, fingerprint(apiKey))
		c.Next()
	}
}

// Caller returns the fingerprint of the authenticated key, if any.
func Caller(c *gin.Context) string {
	return c.GetString(callerKey)
}

func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// isValidKey checks the provided key against the list of valid keys using constant-time comparison.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if valid != "" && subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}
