package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestZapLoggerForwardsToStructuredSink(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf))

	zl.Debug("ffmpeg encode",
		zap.String("codec", "libx265"),
		zap.Float64("rate_factor", 23.5),
		zap.Int("threads", 4),
		zap.Bool("sample", true))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ffmpeg encode", entry["message"])
	assert.Equal(t, "libx265", entry["codec"])
	assert.InDelta(t, 23.5, entry["rate_factor"].(float64), 1e-9)
	assert.Equal(t, float64(4), entry["threads"])
	assert.Equal(t, true, entry["sample"])
}

func TestZapLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(ErrorLevel, &buf))

	zl.Info("suppressed")

	assert.Zero(t, buf.Len())
}

func TestZapLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf)).With(zap.String("component", "encoder"))

	zl.Warn("slow encode")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "encoder", entry["component"])
	assert.Equal(t, "slow encode", entry["message"])
}
