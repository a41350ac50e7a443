package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer, err := NewTracer(TracingConfig{Enabled: true, ServiceName: "shapecsv", Output: &buf})
	require.NoError(t, err)

	err = tracer.Trace(context.Background(), "export", func(ctx context.Context, span *Span) error {
		span.SetAttribute("run_id", "r1")
		span.SetAttribute("datasets", 3)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, tracer.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name":"export"`)
	assert.Contains(t, out, "run_id")
}

func TestTraceReturnsError(t *testing.T) {
	var buf bytes.Buffer
	tracer, err := NewTracer(TracingConfig{Enabled: true, ServiceName: "shapecsv", Output: &buf})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tracer.Trace(context.Background(), "import", func(context.Context, *Span) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, tracer.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "boom")
}

func TestDisabledTracerIsNoop(t *testing.T) {
	tracer, err := NewTracer(TracingConfig{})
	require.NoError(t, err)

	called := false
	err = tracer.Trace(context.Background(), "import", func(context.Context, *Span) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}
