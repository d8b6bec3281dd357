package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/config"
)

// SecurityHeaders sets the response headers configured in cfg. Responses are
// never cached since they carry order and payment state.
func SecurityHeaders(cfg config.SecurityConfig) gin.HandlerFunc {
	headers := map[string]string{
		"X-Frame-Options":         cfg.FrameOptions,
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         cfg.ReferrerPolicy,
		"Content-Security-Policy": cfg.ContentSecurityPolicy,
		"Cache-Control":           "no-store",
	}
	if cfg.HSTSMaxAge > 0 {
		headers["Strict-Transport-Security"] = "max-age=" + strconv.Itoa(int(cfg.HSTSMaxAge.Seconds())) + "; includeSubDomains"
	}

	return func(c *gin.Context) {
		for k, v := range headers {
			if v != "" {
				c.Header(k, v)
			}
		}
		if cfg.ServerName != "" {
			c.Header("Server", cfg.ServerName)
		}
		c.Next()
	}
}
