package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP server with all routes configured.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Mutating endpoints are only exposed when an access key is configured.
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.GET("/queue", handler.APIGetQueue)
			api.GET("/content", handler.APIListContent)
			api.POST("/content/:id/candidates", handler.APIRegisterCandidates)
			api.POST("/candidates/:id/approve", handler.APIApproveCandidate)
			api.POST("/schedule/scrub", handler.APIScrub)
			api.POST("/schedule/sweep", handler.APISweep)
			api.PUT("/schedule/:id", handler.APIReschedule)
			api.DELETE("/schedule/:id", handler.APICancel)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Warn("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health": "/health",
			"stats":  "/stats",
		}

		if apiAccessKey != "" {
			endpoints["queue"] = "/api/queue (requires X-API-Key header)"
			endpoints["content"] = "/api/content (requires X-API-Key header)"
			endpoints["candidates"] = "/api/content/<id>/candidates (POST, requires X-API-Key header)"
			endpoints["approve"] = "/api/candidates/<id>/approve (POST, requires X-API-Key header)"
			endpoints["scrub"] = "/api/schedule/scrub (POST, requires X-API-Key header)"
			endpoints["sweep"] = "/api/schedule/sweep (POST, requires X-API-Key header)"
			endpoints["reschedule"] = "/api/schedule/<id> (PUT, requires X-API-Key header)"
			endpoints["cancel"] = "/api/schedule/<id> (DELETE, requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "RepostQ",
			"description": "Repost scheduling queue with golden-hour prioritization",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware guards the mutating API group. Accepts the key either in
// X-API-Key or as an Authorization bearer token.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
