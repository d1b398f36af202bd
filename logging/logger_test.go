package logging

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func captureStdLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

// TestParseLevel 测试级别解析
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{" WARN ", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"info", InfoLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

// TestFormatValue 测试值格式化
func TestFormatValue(t *testing.T) {
	assert.Equal(t, "test", formatValue("test"))
	assert.Equal(t, "boom", formatValue(errors.New("boom")))
	assert.Equal(t, "User,Merchant", formatValue([]string{"User", "Merchant"}))
	assert.Equal(t, "123", formatValue(123))
	assert.Equal(t, "1.5s", formatValue(1500*time.Millisecond))
}

// TestStdLogger_Levels 测试各级别输出格式
func TestStdLogger_Levels(t *testing.T) {
	buf := captureStdLog(t)
	logger := NewStdLogger("polyrepo")
	ctx := context.Background()

	logger.Debug(ctx, "batched lookup", String("target", "User"))
	logger.Info(ctx, "hydrated", Int("rows", 2))
	logger.Warn(ctx, "skipped discriminator", Bool("declared", false))
	logger.Error(ctx, "save failed", Error(errors.New("disk full")))

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] polyrepo batched lookup target=User")
	assert.Contains(t, out, "[INFO] polyrepo hydrated rows=2")
	assert.Contains(t, out, "[WARN] polyrepo skipped discriminator declared=false")
	assert.Contains(t, out, "[ERROR] polyrepo save failed error=disk full")
}

// TestStdLogger_WithLevel 低于最低级别的日志被丢弃
func TestStdLogger_WithLevel(t *testing.T) {
	buf := captureStdLog(t)
	logger := NewStdLogger("").WithLevel(WarnLevel)
	ctx := context.Background()

	logger.Debug(ctx, "hidden-debug")
	logger.Info(ctx, "hidden-info")
	logger.Warn(ctx, "visible-warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden-debug")
	assert.NotContains(t, out, "hidden-info")
	assert.Contains(t, out, "visible-warn")
}

// TestStdLogger_WithFields_Immutable WithFields 不改变原 Logger
func TestStdLogger_WithFields_Immutable(t *testing.T) {
	buf := captureStdLog(t)
	logger := NewStdLogger("")
	child := logger.WithFields(String("model", "Advert"))

	child.Info(context.Background(), "save", String("op", "stamp"))
	logger.Info(context.Background(), "plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "model=Advert op=stamp")
	assert.NotContains(t, lines[1], "model=Advert")
	assert.Len(t, logger.fields, 0)
}

// TestNoopLogger 测试NoopLogger
func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()
	ctx := context.Background()
	logger.Debug(ctx, "x")
	logger.Info(ctx, "x")
	logger.Warn(ctx, "x")
	logger.Error(ctx, "x")
	assert.Same(t, logger, logger.WithFields(String("k", "v")))
}

// TestGlobalLogger 测试全局Logger
func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	noop := NewNoopLogger()
	SetLogger(noop)
	assert.Equal(t, Logger(noop), GetLogger())
}

// TestZapLogger 通过 observer 校验字段映射
func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core)).WithFields(String("component", "hydrator"))
	ctx := context.Background()

	logger.Debug(ctx, "batched lookup",
		String("target", "User"),
		Int("keys", 3),
		Int64("owner", 7),
		Strings("types", []string{"User", "Merchant"}),
		Duration("took", time.Millisecond),
	)
	logger.Error(ctx, "lookup failed", Error(errors.New("boom")), Any("criteria", map[string]any{"id": 1}))

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, zapcore.DebugLevel, first.Level)
	assert.Equal(t, "batched lookup", first.Message)
	fields := first.ContextMap()
	assert.Equal(t, "hydrator", fields["component"])
	assert.Equal(t, "User", fields["target"])
	assert.Equal(t, int64(3), fields["keys"])
	assert.Equal(t, int64(7), fields["owner"])

	second := entries[1]
	assert.Equal(t, zapcore.ErrorLevel, second.Level)
	assert.Equal(t, "boom", second.ContextMap()["error"])
}

// TestNewZapLoggerFromConfig 测试按配置构建
func TestNewZapLoggerFromConfig(t *testing.T) {
	logger, err := NewZapLoggerFromConfig(WarnLevel, true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, zapcore.WarnLevel, toZapLevel(WarnLevel))
	assert.Equal(t, zapcore.InfoLevel, toZapLevel(InfoLevel))

	nop := NewZapLogger(nil)
	nop.Info(context.Background(), "discarded")
}
