package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestInitAndCtx(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := ContextWithRequestID(context.Background())
	require.NotEmpty(t, RequestIDFromContext(ctx))
	Ctx(ctx).Info().Str("op", "recommendations").Msg("served")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "served", line["message"])
	assert.Equal(t, "recommendations", line["op"])
	assert.Equal(t, RequestIDFromContext(ctx), line["request_id"])

	buf.Reset()
	l := WithComponent("retrain")
	ctx = ContextWithLogger(context.Background(), l)
	Ctx(ctx).Debug().Msg("x")
	assert.Contains(t, buf.String(), `"component":"retrain"`)
}
