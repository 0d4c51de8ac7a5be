package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultCORSOrigins are the local frontend origins allowed when none are configured
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// CORS allows browser calls from the given origins. "*" allows any origin
// but then credentials are not advertised.
func CORS(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			config.AllowAllOrigins = true
		default:
			allowed = append(allowed, o)
		}
	}

	if config.AllowAllOrigins {
		return cors.New(config)
	}
	if len(allowed) == 0 {
		allowed = DefaultCORSOrigins
	}
	config.AllowOrigins = allowed
	config.AllowCredentials = true
	return cors.New(config)
}
