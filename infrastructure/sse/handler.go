package sse

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
)

const eventTypeConnected = "connected"

// Handler streams the broker's events, narrowed by filter, to the requesting client.
func Handler(b *Broker, filter Filter, log infralogger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, unsubscribe, err := b.Subscribe(filter)
		switch {
		case errors.Is(err, ErrTooManyClients), errors.Is(err, ErrStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer unsubscribe()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		log.Debug("Event stream client connected", infralogger.String("remote_addr", c.ClientIP()))

		heartbeat := time.NewTicker(b.Heartbeat())
		defer heartbeat.Stop()

		c.SSEvent(eventTypeConnected, gin.H{"clients": b.Clients()})
		c.Writer.Flush()

		c.Stream(func(w io.Writer) bool {
			select {
			case e, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(e.Type, e.Data)
				return true
			case <-heartbeat.C:
				_, writeErr := io.WriteString(w, ": heartbeat\n\n")
				return writeErr == nil
			case <-c.Request.Context().Done():
				return false
			}
		})

		log.Debug("Event stream client disconnected", infralogger.String("remote_addr", c.ClientIP()))
	}
}
