// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/tidwall/sjson"
	"github.com/tsubouchi/intent-router/internal/breaker"
	"github.com/tsubouchi/intent-router/internal/forwarder"
	"github.com/tsubouchi/intent-router/internal/intent"
	"github.com/tsubouchi/intent-router/internal/logging"
)

// WouldRouteThreshold is the confidence at which /intent/test reports a request as routable.
const WouldRouteThreshold = 0.7

// Error codes returned in the "error" field of failure responses.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeServiceNotFound   = "service_not_found"
	CodeDownstreamFailure = "downstream_failure"
	CodeBreakerOpen       = "breaker_open"
	CodeInternal          = "internal_error"
)

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// writeForwardError maps forwarding failures onto HTTP statuses.
func writeForwardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, forwarder.ErrServiceNotFound):
		writeError(c, http.StatusServiceUnavailable, CodeServiceNotFound, err.Error())
	case errors.Is(err, breaker.ErrBreakerOpen):
		writeError(c, http.StatusServiceUnavailable, CodeBreakerOpen, err.Error())
	case errors.Is(err, forwarder.ErrDownstreamFailure):
		status := http.StatusBadGateway
		if forwarder.IsTimeout(err) {
			status = http.StatusGatewayTimeout
		}
		writeError(c, status, CodeDownstreamFailure, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}

// POST /intent/recognize
func (s *Server) handleRecognize(c *gin.Context) {
	var req intent.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.opts.Engine.Classify(c.Request.Context(), req))
}

// POST /intent/analyze?text=...
func (s *Server) handleAnalyze(c *gin.Context) {
	text, ok := c.GetQuery("text")
	if !ok {
		writeError(c, http.StatusBadRequest, CodeInvalidRequest, "query parameter text is required")
		return
	}
	c.JSON(http.StatusOK, s.opts.Engine.Classify(c.Request.Context(), intent.NewTextRequest(text)))
}

// POST /intent/test classifies without forwarding and reports what routing would do.
func (s *Server) handleTest(c *gin.Context) {
	var req intent.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	result := s.opts.Engine.Classify(c.Request.Context(), req)

	out, err := simulate(result)
	if err != nil {
		writeError(c, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

func simulate(result *intent.ClassificationResult) ([]byte, error) {
	route, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetRawBytes([]byte(`{}`), "route", route)
	if err != nil {
		return nil, err
	}
	fields := []struct {
		path  string
		value interface{}
	}{
		{"simulation.wouldRoute", result.RecognizedIntent.Confidence >= WouldRouteThreshold},
		{"simulation.targetService", result.Routing.TargetService},
		{"simulation.estimatedLatency", float64(result.Routing.Timeout) * 0.1},
		{"simulation.confidence", result.RecognizedIntent.Confidence},
	}
	for _, f := range fields {
		if out, err = sjson.SetBytes(out, f.path, f.value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ANY /route and /route/*path classify the live request and forward it.
// Under /route/*path the subpath is classified and forwarded.
func (s *Server) handleRoute(c *gin.Context) {
	if s.opts.Forwarder == nil {
		writeError(c, http.StatusServiceUnavailable, CodeServiceNotFound, "forwarding is not configured")
		return
	}

	path := c.Request.URL.Path
	if sub := c.Param("path"); sub != "" && sub != "/" {
		path = sub
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(c, status, CodeInvalidRequest, err.Error())
		return
	}

	req := intent.IntentRequest{
		Path:    &path,
		Method:  c.Request.Method,
		Headers: flattenHeaders(c.Request.Header),
	}
	if len(body) > 0 && json.Valid(body) {
		req.Body = body
	}

	result := s.opts.Engine.Classify(c.Request.Context(), req)
	logging.Entry(c).WithFields(map[string]interface{}{
		"query":   logging.MaskQuery(c.Request.URL.RawQuery),
		"headers": logging.MaskHeaders(req.Headers),
	}).Debugf("routing %s %s to %s (confidence %.2f)", req.Method, path, result.Routing.TargetService, result.RecognizedIntent.Confidence)

	resp, err := s.opts.Forwarder.Forward(c.Request.Context(), result, forwarder.Request{
		Method:   c.Request.Method,
		Path:     path,
		RawQuery: c.Request.URL.RawQuery,
		Header:   c.Request.Header,
		Body:     body,
	})
	if err != nil {
		writeForwardError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// flattenHeaders keeps the first value of each header under its lowercased name.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

// GET /health/services
func (s *Server) handleServices(c *gin.Context) {
	if s.opts.Health == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.opts.Health.Snapshot())
}

// GET /health/live
func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GET /health/ready requires a reachable cache and one completed health cycle.
func (s *Server) handleReady(c *gin.Context) {
	checks := gin.H{"redis": false, "services": false}
	ready := true

	if s.opts.Cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.ReadyTimeout)
		err := s.opts.Cache.Ping(ctx)
		cancel()
		if err == nil {
			checks["redis"] = true
		} else {
			logging.Entry(c).Debugf("readiness: cache ping failed: %v", err)
			ready = false
		}
	} else {
		ready = false
	}

	if s.opts.Health != nil && s.opts.Health.HasCompletedCycle() {
		checks["services"] = true
	} else {
		ready = false
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

// POST /config/reload
func (s *Server) handleReload(c *gin.Context) {
	source := s.Reload("api")
	logging.Entry(c).Infof("configuration reloaded from %s", source)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Configuration reloaded"})
}
