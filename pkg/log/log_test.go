package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, cfg *Config) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	lg, _, err := InitLoggerWithWriteSyncer(cfg, zapcore.AddSync(&buf))
	require.NoError(t, err)
	return lg, &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitLoggerLevel(t *testing.T) {
	lg, buf := newBufferLogger(t, &Config{Level: "warn"})
	lg.Info("dropped")
	lg.Warn("kept")
	assert.Equal(t, "kept", lastEntry(t, buf)["message"])
	assert.NotContains(t, buf.String(), "dropped")

	_, props, err := InitLoggerWithWriteSyncer(&Config{Level: "trace"}, zapcore.AddSync(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())

	_, _, err = InitLoggerWithWriteSyncer(&Config{Level: "loud"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestTextFormat(t *testing.T) {
	lg, buf := newBufferLogger(t, &Config{Level: "info", Format: "text", DisableTimestamp: true})
	lg.Info("plain", FieldProtocol("rest-xml"))
	assert.Contains(t, buf.String(), "plain")
	assert.Contains(t, buf.String(), `"protocol": "rest-xml"`)
}

func TestCtxFields(t *testing.T) {
	lg, buf := newBufferLogger(t, &Config{Level: "debug"})
	base := &MLogger{Logger: lg}

	ctx := WithLogger(context.Background(), base)
	assert.Same(t, base, Ctx(ctx))
	// 已有 Logger 时不覆盖。
	assert.Same(t, base, Ctx(WithLogger(ctx, With())))

	ctx = WithFields(ctx, FieldOperation("GetObject"), FieldComponent("client"))
	Ctx(ctx).Info("call")
	entry := lastEntry(t, buf)
	assert.Equal(t, "GetObject", entry[FieldNameOperation])
	assert.Equal(t, "client", entry[FieldNameComponent])

	assert.NotNil(t, Ctx(context.Background()).Logger)
}

func TestRateGroup(t *testing.T) {
	lg, buf := newBufferLogger(t, &Config{Level: "debug"})
	l := (&MLogger{Logger: lg}).WithRateGroup("test.rated", 0.001, 1)

	assert.True(t, l.RatedWarn(1, "first"))
	assert.False(t, l.RatedWarn(1, "second"))
	assert.NotContains(t, buf.String(), "second")

	// 子 Logger 共享限流分组。
	assert.False(t, l.With(zap.String("k", "v")).RatedInfo(1, "third"))
}

func TestRateLimiterFromEnv(t *testing.T) {
	env := func(m map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := m[k]
			return v, ok
		}
	}
	assert.IsType(t, nopRateLimiter{}, rateLimiterFromEnv(env(nil)))

	rl := rateLimiterFromEnv(env(map[string]string{
		envRateEnable:     "true",
		envRateCredit:     "0.001",
		envRateMaxBalance: "2",
	}))
	assert.True(t, rl.CheckCredit(1))
	assert.True(t, rl.CheckCredit(1))
	assert.False(t, rl.CheckCredit(1))
}
