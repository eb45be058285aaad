// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLogMaxSize = 300 // MB

// FileLogConfig 为文件日志配置，对应配置文件 logging.<name>.file 节点。
type FileLogConfig struct {
	// RootPath 为日志目录。
	RootPath string `mapstructure:"rootpath" json:"rootpath"`
	// Filename 为空表示关闭文件日志。
	Filename   string `mapstructure:"filename" json:"filename"`
	MaxSize    int    `mapstructure:"max-size" json:"max-size"`
	MaxDays    int    `mapstructure:"max-days" json:"max-days"`
	MaxBackups int    `mapstructure:"max-backups" json:"max-backups"`
}

// Config 为一个 Logger 的配置。全局 Logger 由 AWSWIRE_LOG_* 环境变量构造，
// 模块 Logger 由配置文件 logging 节点构造。
type Config struct {
	Level string `mapstructure:"level" json:"level"`
	// Format 为 json，或 text/console（人类可读格式）。默认 json。
	Format            string        `mapstructure:"format" json:"format"`
	DisableTimestamp  bool          `mapstructure:"disable-timestamp" json:"disable-timestamp"`
	Stdout            bool          `mapstructure:"stdout" json:"stdout"`
	File              FileLogConfig `mapstructure:"file" json:"file"`
	Development       bool          `mapstructure:"development" json:"development"`
	DisableCaller     bool          `mapstructure:"disable-caller" json:"disable-caller"`
	DisableStacktrace bool          `mapstructure:"disable-stacktrace" json:"disable-stacktrace"`
}

// ZapProperties 记录 zap 日志相关的核心信息。
type ZapProperties struct {
	Core   zapcore.Core
	Syncer zapcore.WriteSyncer
	Level  zap.AtomicLevel
}

func newZapEncoder(cfg *Config) zapcore.Encoder {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "name",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.DisableTimestamp {
		encCfg.TimeKey = ""
	}
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		return zapcore.NewConsoleEncoder(encCfg)
	default:
		return zapcore.NewJSONEncoder(encCfg)
	}
}

func (cfg *Config) buildOptions(errSink zapcore.WriteSyncer) []zap.Option {
	opts := []zap.Option{zap.ErrorOutput(errSink)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if !cfg.DisableStacktrace {
		stackLevel := zap.ErrorLevel
		if cfg.Development {
			stackLevel = zap.WarnLevel
		}
		opts = append(opts, zap.AddStacktrace(stackLevel))
	}
	return opts
}
