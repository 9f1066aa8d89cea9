package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"eventintake/internal/config"
)

func TestKafkaTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "existing", Value: []byte("1")}})
	require.Len(t, headers, 2)
	assert.Equal(t, "traceparent", headers[1].Key)

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), headers))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
}

func TestInitDisabled(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, "submission-service")
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	res, err := newResource(config.TracingConfig{ServiceName: "intake-eu", Environment: "staging"}, "submission-service")
	require.NoError(t, err)

	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "intake-eu", name.AsString())
	env, ok := res.Set().Value(semconv.DeploymentEnvironmentKey)
	require.True(t, ok)
	assert.Equal(t, "staging", env.AsString())

	res, err = newResource(config.TracingConfig{}, "")
	require.NoError(t, err)
	name, _ = res.Set().Value(semconv.ServiceNameKey)
	assert.Equal(t, "submission-service", name.AsString())
	_, ok = res.Set().Value(semconv.DeploymentEnvironmentKey)
	assert.False(t, ok)
}

func TestSubmissionSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	_, span := StartSubmission(context.Background(), "203.0.113.7")
	EndSubmission(span, "accepted", nil)

	_, span = StartSubmission(context.Background(), "203.0.113.8")
	EndSubmission(span, "failed", errors.New("repository unavailable"))

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, SubmissionSpanName, ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), AttrSubmissionOutcome.String("accepted"))
	assert.Contains(t, ended[0].Attributes(), AttrClientIdentity.String("203.0.113.7"))
	assert.Equal(t, codes.Unset, ended[0].Status().Code)

	assert.Contains(t, ended[1].Attributes(), AttrSubmissionOutcome.String("failed"))
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	require.Len(t, ended[1].Events(), 1)
	assert.Equal(t, "exception", ended[1].Events()[0].Name)
}

func TestCreateSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(config.SamplerConfig{Type: "always_off"}).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(config.SamplerConfig{}).Description())
}

func TestHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := HTTPClient(time.Second)
	assert.Equal(t, time.Second, client.Timeout)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
