package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabledInstallsNoop(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	tracer := Tracer("test")
	_, span := tracer.Start(context.Background(), "noop-check")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "carrier-pigeon"})
	require.Error(t, err)
}

func TestShutdownOnNoopProviderIsNoop(t *testing.T) {
	p := &Provider{}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestTracerReturnsUsableSpan(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	ctx, span := Tracer("bilisync/test").Start(context.Background(), "step")
	require.NotNil(t, span)
	span.End()
	assert.NotNil(t, ctx)
}
