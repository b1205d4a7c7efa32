package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Perf Middleware that calculates how much time each request takes
func PerfMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next() // continue the handler chain
		BuildRail(c).Infof("%-6v %-60v [%d] [%s]", c.Request.Method, c.Request.RequestURI, c.Writer.Status(), time.Since(start))
	}
}
