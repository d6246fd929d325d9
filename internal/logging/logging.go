// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package logging builds the process logger. Call sites use log/slog; the
// handler underneath is zap, so output format and level come from zap's
// production (json) or development (text) configuration.
package logging

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger for the given level and format ("json" or
// "text"). Unknown levels fall back to info.
func New(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "text" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// Setup installs a zap-backed slog logger as the slog default and returns
// the zap logger so the caller can Sync it on shutdown.
func Setup(level, format string) (*zap.Logger, error) {
	zl, err := New(level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(Slog(zl))
	return zl, nil
}

// Slog wraps a zap logger in a slog.Logger.
func Slog(zl *zap.Logger) *slog.Logger {
	return slog.New(zapslog.NewHandler(zl.Core(), zapslog.WithCaller(true)))
}
