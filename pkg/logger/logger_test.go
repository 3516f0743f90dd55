package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulexconde/justasking/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("logic drift", zap.String("response_id", "r1"))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "logic drift", entry["msg"])
	assert.Equal(t, "r1", entry["response_id"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("survey loaded")

	assert.Contains(t, buf.String(), "survey loaded")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewWithWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logiccheck.log")
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Level: "debug", File: path}, &buf)
	require.NoError(t, err)

	log.Debug("to both")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to both"`)
	assert.Contains(t, buf.String(), "to both")
}

func TestNewWithWriter_Invalid(t *testing.T) {
	_, err := NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = NewWithWriter(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
