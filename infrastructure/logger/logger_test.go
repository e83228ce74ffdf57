package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFileOutputFlushedOnClose(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Outputs = []string{"file"}
	cfg.OutputFile = filepath.Join(dir, "trader.log")
	cfg.ErrorFile = filepath.Join(dir, "errors.log")

	l, err := New(cfg)
	require.NoError(t, err)
	l.LogOrder("order_launched", "cid-1", map[string]interface{}{"side": "buy"})
	l.LogError(errors.New("boom"), map[string]interface{}{"action": "send"})
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "cid-1"))

	errRaw, err := os.ReadFile(cfg.ErrorFile)
	require.NoError(t, err)
	assert.Contains(t, string(errRaw), "boom")
	assert.NotContains(t, string(errRaw), "cid-1")
}

func TestSetLevel(t *testing.T) {
	l, err := New(Config{Level: "info", Outputs: []string{"stdout"}})
	require.NoError(t, err)
	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, l.Level())
	assert.Error(t, l.SetLevel("nope"))
	assert.Equal(t, zapcore.DebugLevel, l.Level())
}
