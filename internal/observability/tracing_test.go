package observability

import (
	"context"
	"errors"
	"testing"

	"vibefeed/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingConfigFrom(t *testing.T) {
	cfg := &config.Config{Env: "production", TracingEnabled: true, TracingExporter: "otlp", OTLPEndpoint: "collector:4318"}
	tc := TracingConfigFrom(cfg, "2.0.0")
	assert.Equal(t, 0.1, tc.SamplerRatio)
	assert.Equal(t, "collector:4318", tc.OTLPEndpoint)
	assert.Equal(t, "2.0.0", tc.ServiceVersion)

	tc = TracingConfigFrom(&config.Config{Env: "development"}, "dev")
	assert.Equal(t, 1.0, tc.SamplerRatio)
	assert.False(t, tc.Enabled)
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, `unknown tracing exporter "zipkin"`)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Contains(t, sampler(0.25).Description(), "ParentBased")
}

func TestStartSpanEndSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })

	_, ok := StartSpan(context.Background(), "PostService", "CreatePost")
	EndSpan(ok, nil)
	_, failed := StartSpan(context.Background(), "ChatService", "SendMessage")
	EndSpan(failed, errors.New("boom"))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "PostService.CreatePost", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "ChatService.SendMessage", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
}
