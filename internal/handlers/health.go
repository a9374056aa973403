package handlers

import (
	"net/http"

	"autoparts/internal/cache"
	"autoparts/internal/database"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Health reports whether MongoDB answers a ping. Redis is informational.
func Health(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "database unavailable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok", "cache": catalogCache.Enabled()})
	}
}
