package tracing

import (
	"context"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_Disabled(t *testing.T) {
	tr, closer, err := InitTracer(Config{Service: "ladder"})
	require.NoError(t, err)
	assert.IsType(t, opentracing.NoopTracer{}, tr)
	assert.NoError(t, closer.Close())
}

func TestStartSpan_NilTracer(t *testing.T) {
	span, ctx := StartSpan(context.Background(), nil, "op")
	require.NotNil(t, span)
	assert.Equal(t, span, opentracing.SpanFromContext(ctx))
	span.Finish()
}
