package log

import (
	"testing"

	kratoslog "github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"InstantMBTA/internal/conf"
)

func newObservedAdapter() (kratoslog.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(zap.DebugLevel)
	return NewKratosAdapter(zap.New(core)), observed
}

func TestKratosAdapter_LevelMapping(t *testing.T) {
	adapter, observed := newObservedAdapter()

	assert.NoError(t, adapter.Log(kratoslog.LevelDebug, "msg", "debug line"))
	assert.NoError(t, adapter.Log(kratoslog.LevelInfo, "msg", "info line"))
	assert.NoError(t, adapter.Log(kratoslog.LevelWarn, "msg", "warn line"))
	assert.NoError(t, adapter.Log(kratoslog.LevelError, "msg", "error line"))

	entries := observed.All()
	assert.Len(t, entries, 4)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.InfoLevel, entries[1].Level)
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
	assert.Equal(t, zap.ErrorLevel, entries[3].Level)
}

func TestKratosAdapter_KeyvalsBecomeFields(t *testing.T) {
	adapter, observed := newObservedAdapter()

	assert.NoError(t, adapter.Log(kratoslog.LevelInfo, "station", "place-ogmnl", "rows", 3))

	entries := observed.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "place-ogmnl", fields["station"])
	assert.EqualValues(t, 3, fields["rows"])
}

func TestKratosAdapter_EmptyKeyvals(t *testing.T) {
	adapter, observed := newObservedAdapter()

	assert.NoError(t, adapter.Log(kratoslog.LevelInfo))
	assert.Zero(t, observed.Len())
}

func TestNewZapLogger_InvalidLevel(t *testing.T) {
	_, err := NewZapLogger(&conf.Log{Level: "loud", Format: "console"})
	assert.Error(t, err)
}

func TestNewZapLogger_NilConfig(t *testing.T) {
	_, err := NewZapLogger(nil)
	assert.Error(t, err)
}

func TestNewZapLogger_JSONFormat(t *testing.T) {
	logger, err := NewZapLogger(&conf.Log{Level: "info", Format: "json"})
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}
