package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func bufferedQueryLogger(level gormlogger.LogLevel) (*queryLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &queryLogger{log: log, level: level, slow: slowQuery}, &buf
}

func statement() (string, int64) { return "SELECT 1", 1 }

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, gormLevel("debug"))
	assert.Equal(t, gormlogger.Error, gormLevel("error"))
	assert.Equal(t, gormlogger.Warn, gormLevel("info"))
	assert.Equal(t, gormlogger.Warn, gormLevel(""))
}

func TestQueryLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("warn level skips fast queries", func(t *testing.T) {
		q, buf := bufferedQueryLogger(gormlogger.Warn)
		q.Trace(ctx, time.Now(), statement, nil)
		assert.Empty(t, buf.String())
	})

	t.Run("missing rows are not errors", func(t *testing.T) {
		q, buf := bufferedQueryLogger(gormlogger.Warn)
		q.Trace(ctx, time.Now(), statement, gorm.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("failures carry the error", func(t *testing.T) {
		q, buf := bufferedQueryLogger(gormlogger.Warn)
		q.Trace(ctx, time.Now(), statement, errors.New("relation missing"))
		assert.Contains(t, buf.String(), "level=ERROR")
		assert.Contains(t, buf.String(), "relation missing")
		assert.Contains(t, buf.String(), `sql="SELECT 1"`)
	})

	t.Run("slow queries warn", func(t *testing.T) {
		q, buf := bufferedQueryLogger(gormlogger.Warn)
		q.Trace(ctx, time.Now().Add(-time.Second), statement, nil)
		assert.Contains(t, buf.String(), "slow query")
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		q, buf := bufferedQueryLogger(gormlogger.Info)
		q.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), statement, errors.New("x"))
		assert.Empty(t, buf.String())
	})
}
