package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_DisabledUsesNoopTracer(t *testing.T) {
	tel, err := Init(context.Background(), &Config{Enabled: false, ServiceName: "portal"})
	require.NoError(t, err)
	require.NotNil(t, tel.Tracer())

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.Equal(t, "", GetTraceID(ctx))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInit_NilConfig(t *testing.T) {
	_, err := Init(context.Background(), nil)
	assert.NoError(t, err)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestTracingMiddleware_SetsTraceHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = provider.Shutdown(context.Background()) }()

	r := gin.New()
	r.Use(TracingMiddleware("portal-test"))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))
}

func TestHTTPTransport_PropagatesTraceContext(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = provider.Shutdown(context.Background()) }()

	var gotTraceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, span := provider.Tracer("test").Start(context.Background(), "outgoing")
	defer span.End()

	client := &http.Client{Transport: HTTPTransport(nil)}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.NotEmpty(t, gotTraceparent)
}

func TestCounterAndHistogram_NilSafe(t *testing.T) {
	var c *Counter
	var h *Histogram
	c.Inc(context.Background(), attribute.String("k", "v"))
	h.Record(context.Background(), 1.5)

	counter, err := NewCounter(MetricOpts{Name: "test_total", Description: "test", Unit: "1"})
	require.NoError(t, err)
	counter.Inc(context.Background())

	hist, err := NewHistogramWithBuckets(MetricOpts{Name: "test_seconds", Unit: "s"}, []float64{0.1, 1})
	require.NoError(t, err)
	hist.Record(context.Background(), 0.5)
}
