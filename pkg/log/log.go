// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	envRateEnable     = "AWSWIRE_LOG_RATE_ENABLE"
	envRateCredit     = "AWSWIRE_LOG_RATE_CREDIT_PER_SECOND"
	envRateMaxBalance = "AWSWIRE_LOG_RATE_MAX_BALANCE"
)

var _globalL, _globalP, _globalR, _globalCleanup atomic.Value

var _namedRateLimiters sync.Map

// RateLimiter 为限流日志使用的最小接口，utils.ReconfigurableRateLimiter 满足该接口。
type RateLimiter interface {
	CheckCredit(delta float64) bool
}

type nopRateLimiter struct{}

func (nopRateLimiter) CheckCredit(float64) bool { return true }

func init() {
	l, p := newStdLogger()
	_globalL.Store(l)
	_globalP.Store(p)
	_globalR.Store(rateLimiterFromEnv(os.LookupEnv))
}

// InitLogger initializes a zap logger writing to the configured file and/or stdout.
// With neither configured, entries are discarded.
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	var outputs []zapcore.WriteSyncer
	if len(cfg.File.Filename) > 0 {
		lg, err := initFileLog(&cfg.File)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, zapcore.AddSync(lg))
		registerCleanup(func() { _ = lg.Close() })
	}
	if cfg.Stdout {
		stdOut, _, err := zap.Open("stdout")
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, stdOut)
	}
	lg, props, err := InitLoggerWithWriteSyncer(cfg, zap.CombineWriteSyncers(outputs...), opts...)
	if err != nil {
		return nil, nil, err
	}
	return lg, props, nil
}

// InitLoggerWithWriteSyncer initializes a zap logger with specified write syncer.
// "trace" is accepted as an alias of "debug".
func InitLoggerWithWriteSyncer(cfg *Config, output zapcore.WriteSyncer, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	levelText := cfg.Level
	if levelText == "" || strings.EqualFold(levelText, "trace") {
		levelText = "debug"
	}
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	core := zapcore.NewCore(newZapEncoder(cfg), output, level)
	opts = append(cfg.buildOptions(output), opts...)
	return zap.New(core, opts...), &ZapProperties{Core: core, Syncer: output, Level: level}, nil
}

func initFileLog(cfg *FileLogConfig) (*lumberjack.Logger, error) {
	logPath := filepath.Join(cfg.RootPath, cfg.Filename)
	if st, err := os.Stat(logPath); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %q is a directory", logPath)
	}
	maxSize := cfg.MaxSize
	if maxSize == 0 {
		maxSize = defaultLogMaxSize
	}
	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

func newStdLogger() (*zap.Logger, *ZapProperties) {
	lg, p, _ := InitLogger(&Config{Level: "info", Stdout: true}, zap.OnFatal(zapcore.WriteThenPanic))
	return lg, p
}

// L returns the global Logger, which can be reconfigured with ReplaceGlobals.
// It's safe for concurrent use.
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

// R returns the global RateLimiter used by rated logging helpers.
// Rate limiting is off unless AWSWIRE_LOG_RATE_ENABLE is set.
func R() RateLimiter {
	if rl, ok := _globalR.Load().(RateLimiter); ok && rl != nil {
		return rl
	}
	return nopRateLimiter{}
}

// ReplaceGlobals replaces the global Logger.
// It's safe for concurrent use.
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	_globalL.Store(logger)
	_globalP.Store(props)
}

// Level returns the level of the global logger.
func Level() zap.AtomicLevel {
	return _globalP.Load().(*ZapProperties).Level
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}

// Cleanup closes file outputs opened by InitLogger.
func Cleanup() {
	if cleanup := _globalCleanup.Load(); cleanup != nil {
		cleanup.(func())()
	}
}

func registerCleanup(cleanup func()) {
	if old := _globalCleanup.Swap(cleanup); old != nil {
		old.(func())()
	}
}

// rateLimiterFromEnv builds the global limiter from AWSWIRE_LOG_RATE_*:
//
//   - AWSWIRE_LOG_RATE_ENABLE: "1"/"true" enables rate limiting (default off).
//   - AWSWIRE_LOG_RATE_CREDIT_PER_SECOND: default 1.0.
//   - AWSWIRE_LOG_RATE_MAX_BALANCE: default 60.0.
func rateLimiterFromEnv(lookup func(string) (string, bool)) RateLimiter {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	switch strings.ToLower(get(envRateEnable)) {
	case "1", "true", "yes", "on":
	default:
		return nopRateLimiter{}
	}
	return utils.NewRateLimiter(parseFloat(get(envRateCredit), 1.0), parseFloat(get(envRateMaxBalance), 60.0))
}

func parseFloat(val string, def float64) float64 {
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return f
}
