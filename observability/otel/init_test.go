package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("authorization=Bearer x, empty=,=skip,broken, tenant = onda ")
	require.Equal(t, map[string]string{
		"authorization": "Bearer x",
		"empty":         "",
		"tenant":        "onda",
	}, headers)
}

func TestFromEnvDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	cfg := FromEnv("custodyd", "dev")
	require.False(t, cfg.Traces)
	require.False(t, cfg.Metrics)
	require.False(t, cfg.Insecure)

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestFromEnvReadsSamplerAndInterval(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "nope")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "5000")
	cfg := FromEnv("custodyd", "prod")
	require.True(t, cfg.Traces)
	require.True(t, cfg.Metrics)
	require.True(t, cfg.Insecure, "unparseable flag falls back to insecure")
	require.Equal(t, 0.25, cfg.SampleRatio)
	require.Equal(t, 5*time.Second, cfg.MetricInterval)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{ServiceName: "custodyd"}.withDefaults()
	require.Equal(t, defaultEndpoint, cfg.Endpoint)
	require.Equal(t, defaultBatchTimeout, cfg.BatchTimeout)
	require.Equal(t, defaultMetricInterval, cfg.MetricInterval)

	require.Contains(t, Config{}.sampler().Description(), "AlwaysOnSampler")
	require.Contains(t, Config{SampleRatio: 0.5}.sampler().Description(), "TraceIDRatioBased")
}

func TestChainShutdownJoinsErrors(t *testing.T) {
	var order []int
	first := errors.New("first")
	fns := []shutdownFunc{
		func(context.Context) error { order = append(order, 1); return first },
		func(context.Context) error { order = append(order, 2); return nil },
	}
	err := chainShutdown(fns)(context.Background())
	require.ErrorIs(t, err, first)
	require.Equal(t, []int{2, 1}, order)
}
