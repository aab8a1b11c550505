package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestConfig_Sampler(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"always", Config{SamplerType: SamplerAlways}, sdktrace.AlwaysSample().Description()},
		{"never", Config{SamplerType: SamplerNever}, sdktrace.NeverSample().Description()},
		{"ratio", Config{SamplerType: SamplerRatio, SamplerRatio: 0.5}, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5)).Description()},
		{"empty falls back to always", Config{}, sdktrace.AlwaysSample().Description()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.sampler().Description())
		})
	}
}

func TestConfig_ServiceName(t *testing.T) {
	assert.Equal(t, DefaultServiceName, Config{}.serviceName())
	assert.Equal(t, "custom", Config{ServiceName: "custom"}.serviceName())
}

func TestShutdownChain(t *testing.T) {
	var order []string
	chain := shutdownChain{
		func(context.Context) error { order = append(order, "first"); return errors.New("first failed") },
		func(context.Context) error { order = append(order, "second"); return nil },
		func(context.Context) error { order = append(order, "third"); return errors.New("third failed") },
	}

	err := chain.shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Contains(t, err.Error(), "third failed")
	assert.Equal(t, []string{"third", "second", "first"}, order)

	assert.NoError(t, shutdownChain{}.shutdown(context.Background()))
}

func TestEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, failed := tracer.Start(context.Background(), "failed")
	EndSpan(failed, errors.New("boom"))
	_, ok := tracer.Start(context.Background(), "ok")
	EndSpan(ok, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "Error", spans[0].Status().Code.String())
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "Ok", spans[1].Status().Code.String())
}

func TestAddEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx, span := provider.Tracer("test").Start(context.Background(), "run")
	AddEvent(ctx, "dependency.skipped")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "dependency.skipped", spans[0].Events()[0].Name)
}
