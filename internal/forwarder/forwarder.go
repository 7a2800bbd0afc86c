// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package forwarder sends a classified request to its target service, guarded by
// that service's circuit breaker.
package forwarder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tsubouchi/intent-router/internal/breaker"
	"github.com/tsubouchi/intent-router/internal/hooks"
	"github.com/tsubouchi/intent-router/internal/intent"
	"github.com/tsubouchi/intent-router/internal/registry"
)

var (
	// ErrServiceNotFound is returned when the selected target has no catalog entry.
	ErrServiceNotFound = errors.New("service not found")

	// ErrDownstreamFailure wraps transport errors and timeouts from the target service.
	ErrDownstreamFailure = errors.New("downstream failure")
)

// Forward outcomes reported to the Recorder.
const (
	OutcomeOK                = "ok"
	OutcomeServiceNotFound   = "service_not_found"
	OutcomeBreakerOpen       = "breaker_open"
	OutcomeDownstreamFailure = "downstream_failure"
)

// maxResponseBytes caps how much of a downstream body is buffered.
const maxResponseBytes = 32 << 20

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Host",
	"Content-Length",
}

// Catalog resolves service names to descriptors.
type Catalog interface {
	Lookup(name string) (registry.ServiceDescriptor, bool)
}

// Recorder counts forward outcomes.
type Recorder interface {
	ObserveForward(service, outcome string)
}

// Request is the inbound request to replay against the target service.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Routing identifies where a response came from.
type Routing struct {
	Service  string `json:"service"`
	IntentID string `json:"intentId"`
}

// Response is the downstream reply annotated with routing metadata.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	Routing Routing           `json:"routing"`
}

// Options configures a Forwarder. Every field is optional.
type Options struct {
	Client   *http.Client
	Recorder Recorder
	Events   *hooks.EventBus
}

// Forwarder replays requests to downstream services.
type Forwarder struct {
	catalog  Catalog
	breakers *breaker.Set[*Response]
	opts     Options
}

// New creates a forwarder resolving targets in catalog.
func New(catalog Catalog, breakers *breaker.Set[*Response], opts Options) *Forwarder {
	if breakers == nil {
		breakers = breaker.NewSet[*Response](breaker.DefaultSettings())
	}
	if opts.Client == nil {
		opts.Client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Forwarder{catalog: catalog, breakers: breakers, opts: opts}
}

// Breakers returns the forwarder's breaker set.
func (f *Forwarder) Breakers() *breaker.Set[*Response] {
	return f.breakers
}

// Forward sends req to the service selected in result. Any downstream status code
// is a successful forward; only transport failures and timeouts count against the
// service's breaker. The call is bounded by the service timeout alone; caller
// cancellation does not abort it.
func (f *Forwarder) Forward(ctx context.Context, result *intent.ClassificationResult, req Request) (*Response, error) {
	service := result.Routing.TargetService
	svc, ok := f.catalog.Lookup(service)
	if !ok {
		f.record(service, OutcomeServiceNotFound)
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}

	resp, err := f.breakers.Execute(service, func() (*Response, error) {
		return f.do(context.WithoutCancel(ctx), svc, req)
	})
	switch {
	case errors.Is(err, breaker.ErrBreakerOpen):
		f.record(service, OutcomeBreakerOpen)
		return nil, err
	case err != nil:
		f.record(service, OutcomeDownstreamFailure)
		f.publishFailure(service, result.IntentID, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrDownstreamFailure, service, err)
	}

	f.record(service, OutcomeOK)
	resp.Routing = Routing{Service: service, IntentID: result.IntentID}
	return resp, nil
}

// IsTimeout reports whether a forward error was caused by the service timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (f *Forwarder) do(ctx context.Context, svc registry.ServiceDescriptor, req Request) (*Response, error) {
	if timeout := svc.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := svc.Endpoint(req.Path)
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = outboundHeaders(req.Header)

	start := time.Now()
	httpResp, err := f.opts.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	log.Debugf("forwarded %s %s -> %s (%d) in %s", method, req.Path, svc.Name, httpResp.StatusCode, time.Since(start))

	return &Response{
		Status:  httpResp.StatusCode,
		Headers: flattenHeaders(httpResp.Header),
		Body:    strings.ToValidUTF8(string(data), ""),
	}, nil
}

func outboundHeaders(in http.Header) http.Header {
	out := in.Clone()
	if out == nil {
		out = http.Header{}
	}
	for _, h := range hopHeaders {
		out.Del(h)
	}
	return out
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func (f *Forwarder) record(service, outcome string) {
	if f.opts.Recorder != nil {
		f.opts.Recorder.ObserveForward(service, outcome)
	}
}

func (f *Forwarder) publishFailure(service, intentID string, err error) {
	if f.opts.Events == nil {
		return
	}
	f.opts.Events.PublishAsync(&hooks.EventContext{
		Event:        hooks.EventForwardFailed,
		Timestamp:    time.Now(),
		Service:      service,
		Error:        err,
		ErrorMessage: err.Error(),
		Data: map[string]interface{}{
			"intent_id": intentID,
			"timeout":   IsTimeout(err),
		},
	})
}
