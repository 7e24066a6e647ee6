package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.Config{AppEnv: "prod", LogLevel: "warn"}, &buf)
	l.Info().Msg("dropped")
	cl := Component(l, "reconcile")
	cl.Warn().Str("project", "alpha").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "reconcile", line["component"])
	assert.Equal(t, "alpha", line["project"])
	assert.Equal(t, "sprint-pulse", line["service"])
}

func TestNew_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.Config{AppEnv: "prod", LogLevel: "loud"}, &buf)
	l.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
	l.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
