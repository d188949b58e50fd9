package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info, WithSlowThreshold(50*time.Millisecond))

	tenantID := uuid.New()
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-7")
	ctx = WithIdentity(ctx, tenantID, uuid.New())

	gl.Trace(ctx, time.Now(), sqlFn("SELECT * FROM invoices", 1), nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), sqlFn("SELECT * FROM refunds", 3), nil)
	gl.Trace(ctx, time.Now(), sqlFn("UPDATE payments", 0), errors.New("deadlock detected"))

	entries := recorded.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "SQL Query", entries[0].Message)
	assert.Equal(t, "req-7", entries[0].ContextMap()["request_id"])
	assert.Equal(t, tenantID.String(), entries[0].ContextMap()["tenant_id"])

	assert.Equal(t, "Slow SQL", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)

	assert.Equal(t, "SQL Error", entries[2].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestGormLogger_IgnoresRecordNotFound(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 0), gormlogger.ErrRecordNotFound)
	assert.Zero(t, recorded.Len())

	loud := NewGormLogger(zap.New(core), gormlogger.Error, WithIgnoreRecordNotFoundError(false))
	loud.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 0), gormlogger.ErrRecordNotFound)
	assert.Equal(t, 1, recorded.Len())
}

func TestGormLogger_Silent(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info).LogMode(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 0), errors.New("boom"))
	gl.Info(context.Background(), "hello %s", "world")
	assert.Zero(t, recorded.Len())
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}

func TestGormLogger_FlagsRowLocks(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info)

	gl.Trace(context.Background(), time.Now(), sqlFn(`SELECT * FROM "invoices" WHERE id = $1 FOR UPDATE`, 1), nil)
	gl.Trace(context.Background(), time.Now(), sqlFn(`SELECT * FROM "invoices"`, 4), nil)

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, true, entries[0].ContextMap()["row_lock"])
	assert.NotContains(t, entries[1].ContextMap(), "row_lock")
}

func TestGormLogger_WarnLevelSkipsFastStatements(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Warn)

	called := false
	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		called = true
		return "SELECT 1", 1
	}, nil)

	assert.Zero(t, recorded.Len())
	assert.False(t, called, "statement text is only rendered when it will be logged")
}
