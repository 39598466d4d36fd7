// Package server exposes an aggregated milestone changelog over HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/modioab/nagger/notes"
)

// Serve renders the milestone changelog on demand and serves it as JSON.
// Blocks until the listener fails.
func Serve(f notes.Forge, log *zap.Logger, opts notes.Options, milestoneName, addr string) error {
	r := gin.Default()
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/changelog", func(c *gin.Context) {
		changelogs, err := notes.BuildMilestoneChangelog(f, log, milestoneName, opts)
		if err != nil {
			log.Error("building changelog", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"milestone": milestoneName,
			"projects":  changelogs,
		})
	})
	return r.Run(addr)
}
