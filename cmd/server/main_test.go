package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syncRecorder buffers writes and records whether they were flushed.
type syncRecorder struct {
	buf    bytes.Buffer
	synced int
}

func (s *syncRecorder) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *syncRecorder) Sync() error                 { s.synced++; return nil }

func TestExitWithError_FlushesBeforeExit(t *testing.T) {
	out := &syncRecorder{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), out, zap.InfoLevel)
	logger := zap.New(core)

	orig := exit
	t.Cleanup(func() { exit = orig })
	var code, syncedAtExit int
	exit = func(c int) { code = c; syncedAtExit = out.synced }

	exitWithError(logger, errors.New("ping database: refused"))

	require.Equal(t, 1, code)
	assert.Equal(t, 1, syncedAtExit, "logger must be synced before exiting")
	assert.Contains(t, out.buf.String(), `"msg":"server stopped"`)
	assert.Contains(t, out.buf.String(), "ping database: refused")
}
