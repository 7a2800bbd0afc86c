// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// RequestIDField is the logrus field and gin context key carrying the request ID.
	RequestIDField = "request_id"

	// RequestIDHeader is echoed on every response.
	RequestIDHeader = "X-Request-ID"
)

// ConnectionTracker observes in-flight requests.
type ConnectionTracker interface {
	ConnectionOpened()
	ConnectionClosed()
}

// NewRequestID returns a short random request identifier.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// RequestID assigns each request an ID, reusing a caller-supplied X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 64 {
			id = NewRequestID()
		}
		c.Set(RequestIDField, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(RequestIDField)
}

// Entry returns a logger bound to the request's ID.
func Entry(c *gin.Context) *log.Entry {
	if id := GetRequestID(c); id != "" {
		return log.WithField(RequestIDField, id)
	}
	return log.NewEntry(log.StandardLogger())
}

// AccessLog logs one line per request. Health and metrics probes log at debug.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		entry := Entry(c).WithFields(log.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Microsecond),
			"client":  c.ClientIP(),
		})
		msg := c.Request.Method + " " + path

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Warn(msg)
		case strings.HasPrefix(path, "/health/") || path == "/metrics":
			entry.Debug(msg)
		default:
			entry.Info(msg)
		}
	}
}

// TrackConnections reports in-flight requests to tracker.
func TrackConnections(tracker ConnectionTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracker == nil {
			c.Next()
			return
		}
		tracker.ConnectionOpened()
		defer tracker.ConnectionClosed()
		c.Next()
	}
}

// Recovery turns handler panics into a 500 JSON response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				Entry(c).Errorf("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_error",
					"message": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
