// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/sensor-server/lib/aggregator"
	"github.com/bureau-foundation/sensor-server/lib/clock"
	"github.com/bureau-foundation/sensor-server/lib/history"
	"github.com/bureau-foundation/sensor-server/lib/httpserver"
	"github.com/bureau-foundation/sensor-server/lib/httpwire"
	"github.com/bureau-foundation/sensor-server/lib/render"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// DefaultTitle is the landing page title.
const DefaultTitle = "Bureau Sensor Server"

// Sampler produces absolute readings: a zero baseline and a fresh
// dispatch. *aggregator.Aggregator implements it.
type Sampler interface {
	Zero(root *topology.SystemRoot) *aggregator.Snapshot
	Dispatch(ctx context.Context, root *topology.SystemRoot) (*aggregator.Snapshot, error)
}

// PairSource returns two snapshots distance samples apart, blocking
// until they exist. *history.History implements it.
type PairSource interface {
	Pair(ctx context.Context, distance int) (older, newer *aggregator.Snapshot, err error)
}

// Config configures an Endpoint.
type Config struct {
	// Root is the topology every document describes. Required.
	Root *topology.SystemRoot

	// Sampler serves "/" and "/metrics". Required.
	Sampler Sampler

	// History serves "/persecond". Required.
	History PairSource

	// Accelerators adds the accelerator section to every document.
	Accelerators bool

	// Gatherer supplies the server's own metrics, appended to
	// "/metrics". Optional.
	Gatherer prometheus.Gatherer

	// Title is the landing page title. Defaults to DefaultTitle.
	Title string

	// Clock times waits and renders. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// Metrics records render counts and durations. Optional.
	Metrics *Metrics
}

// Endpoint answers the sensor server's GET routes.
type Endpoint struct {
	root         *topology.SystemRoot
	sampler      Sampler
	history      PairSource
	accelerators bool
	gatherer     prometheus.Gatherer
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *Metrics

	landing *resource
	favicon *resource
}

// New returns an Endpoint. The landing page is rendered here.
func New(config Config) (*Endpoint, error) {
	if config.Root == nil {
		panic("endpoint.New: Root is required")
	}
	if config.Sampler == nil {
		panic("endpoint.New: Sampler is required")
	}
	if config.History == nil {
		panic("endpoint.New: History is required")
	}
	if config.Logger == nil {
		panic("endpoint.New: Logger is required")
	}
	if config.Title == "" {
		config.Title = DefaultTitle
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}

	landing, err := renderLanding(config.Title)
	if err != nil {
		return nil, err
	}

	return &Endpoint{
		root:         config.Root,
		sampler:      config.Sampler,
		history:      config.History,
		accelerators: config.Accelerators,
		gatherer:     config.Gatherer,
		clock:        config.Clock,
		logger:       config.Logger,
		metrics:      config.Metrics,
		landing:      newResource(httpwire.MimeTextHTML, landing),
		favicon:      newResource(httpwire.MimeIcon, faviconICO),
	}, nil
}

// Handlers returns the method table for httpserver.Config. HEAD is
// left to the server, which serves it with the GET handler.
func (e *Endpoint) Handlers() map[httpwire.Method]httpserver.Handler {
	return map[httpwire.Method]httpserver.Handler{
		httpwire.MethodGet: e.ServeGET,
	}
}

// ServeGET routes one GET request.
func (e *Endpoint) ServeGET(ctx context.Context, request *httpwire.Request, response *httpwire.Response) {
	path := request.URL.Path
	e.logger.Debug("routing request", "path", path, "accept", request.Headers.Value("Accept"))

	switch {
	case path == "/favicon.ico":
		e.serveResource(request, response, e.favicon, "public, max-age=86400")

	case path == "/":
		mime := Negotiate(request.Headers.Value("Accept"))
		if mime == httpwire.MimeTextHTML {
			e.serveResource(request, response, e.landing, "no-cache")
			return
		}
		e.serveAbsolute(ctx, request, response, "absolute", mime)

	case path == "/metrics":
		e.serveAbsolute(ctx, request, response, "metrics", httpwire.MimePrometheus)

	case strings.HasPrefix(path, "/persecond"):
		distance, status, message := ParsePerSecond(path)
		if status != httpwire.StatusOK {
			response.SetText(status, message)
			return
		}
		mime := Negotiate(request.Headers.Value("Accept"))
		if mime == httpwire.MimeTextHTML {
			response.SetText(httpwire.StatusNotAcceptable, notAcceptable(path))
			return
		}
		started := e.clock.Now()
		older, newer, err := e.history.Pair(ctx, distance)
		e.metrics.waited(e.clock.Now().Sub(started))
		if err != nil {
			e.sampleFailed(response, "waiting for samples", err)
			return
		}
		e.serveCounters(request, response, "persecond", mime, older, newer)

	default:
		response.SetText(httpwire.StatusNotFound, "Unknown path.")
	}
}

// ParsePerSecond parses a path starting with "/persecond" into a
// sample distance. "/persecond" and "/persecond/" mean 1 and
// "/persecond/N" with an optional trailing slash means N. A status
// other than StatusOK comes with the message for the error body:
// 400 for an N outside 1..history.Capacity (an empty N counts as 0) or
// a signed number, and 404 for anything else.
func ParsePerSecond(path string) (distance int, status httpwire.Status, message string) {
	rest, ok := strings.CutPrefix(path, "/persecond")
	if !ok {
		return 0, httpwire.StatusNotFound, "Unknown path."
	}
	if rest == "" || rest == "/" {
		return 1, httpwire.StatusOK, ""
	}
	seconds, ok := strings.CutPrefix(rest, "/")
	if !ok {
		return 0, httpwire.StatusNotFound, "Request starts with /persecond but contains bad characters."
	}
	seconds = strings.TrimSuffix(seconds, "/")

	switch {
	case seconds == "":
		// "/persecond//" names an empty count, which is zero.
		return 0, httpwire.StatusBadRequest,
			fmt.Sprintf("Seconds must be between 1 and %d.", history.Capacity)
	case allDigits(seconds):
		value, err := strconv.Atoi(seconds)
		if err != nil || value < 1 || value > history.Capacity {
			return 0, httpwire.StatusBadRequest,
				fmt.Sprintf("Seconds must be between 1 and %d.", history.Capacity)
		}
		return value, httpwire.StatusOK, ""
	case len(seconds) > 1 && (seconds[0] == '-' || seconds[0] == '+') && allDigits(seconds[1:]):
		return 0, httpwire.StatusBadRequest, "Request starts with /persecond/ but is not followed by numbers only."
	}
	return 0, httpwire.StatusNotFound, "Request starts with /persecond but contains bad characters."
}

func allDigits(text string) bool {
	if text == "" {
		return false
	}
	for index := range len(text) {
		if text[index] < '0' || text[index] > '9' {
			return false
		}
	}
	return true
}

func notAcceptable(path string) string {
	return fmt.Sprintf("Server can only serve %q as application/json, "+
		"\"text/plain; version=0.0.4\" (prometheus format) or application/cbor.", path)
}

// serveAbsolute answers with counters accumulated since start-up: the
// zero baseline against a fresh dispatch.
func (e *Endpoint) serveAbsolute(ctx context.Context, request *httpwire.Request, response *httpwire.Response, route string, mime httpwire.MimeType) {
	started := e.clock.Now()
	after, err := e.sampler.Dispatch(ctx, e.root)
	e.metrics.waited(e.clock.Now().Sub(started))
	if err != nil {
		e.sampleFailed(response, "sampling counters", err)
		return
	}
	e.serveCounters(request, response, route, mime, e.sampler.Zero(e.root), after)
}

func (e *Endpoint) serveCounters(request *httpwire.Request, response *httpwire.Response, route string, mime httpwire.MimeType, before, after *aggregator.Snapshot) {
	in := render.Input{Root: e.root, Before: before, After: after, Accelerators: e.accelerators}

	started := e.clock.Now()
	var body []byte
	var err error
	var format string
	switch mime {
	case httpwire.MimeJSON:
		format = "json"
		body, err = render.JSON(in)
	case httpwire.MimeCBOR:
		format = "cbor"
		body, err = render.CBOR(in)
	default:
		format = "prometheus"
		var extra prometheus.Gatherer
		if route == "metrics" {
			extra = e.gatherer
		}
		body, err = render.Prometheus(in, extra)
	}
	if err != nil {
		e.logger.Error("rendering counters failed", "route", route, "format", format, "error", err)
		response.SetText(httpwire.StatusInternalServerError, "Rendering counters failed.")
		return
	}
	e.metrics.rendered(route, format, e.clock.Now().Sub(started))

	if err := setBody(request, response, mime, body); err != nil {
		e.logger.Error("compressing response failed", "route", route, "error", err)
		response.SetText(httpwire.StatusInternalServerError, "Compressing the response failed.")
	}
}

func (e *Endpoint) sampleFailed(response *httpwire.Response, what string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		response.SetText(httpwire.StatusServiceUnavailable, "Server is shutting down.")
		return
	}
	e.logger.Error(what+" failed", "error", err)
	response.SetText(httpwire.StatusInternalServerError, "Sampling counters failed.")
}

// serveResource answers with a fixed body, or 304 when the client
// already holds it.
func (e *Endpoint) serveResource(request *httpwire.Request, response *httpwire.Response, resource *resource, cacheControl string) {
	if resource.matches(request.Headers.Value("If-None-Match")) {
		response.Status = httpwire.StatusNotModified
		response.Headers.Set("ETag", resource.etag)
		response.Headers.Set("Cache-Control", cacheControl)
		return
	}
	response.SetBody(resource.mime, resource.body, httpwire.StatusOK)
	response.Headers.Set("ETag", resource.etag)
	response.Headers.Set("Cache-Control", cacheControl)
}
