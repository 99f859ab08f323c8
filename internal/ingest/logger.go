// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package ingest

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// watermillLogger adapts zerolog to watermill.LoggerAdapter.
type watermillLogger struct {
	log zerolog.Logger
}

// newWatermillLogger returns a Watermill logger writing through l.
func newWatermillLogger(l zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{log: l}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Error().Err(err).Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Info().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{log: w.log.With().Fields(map[string]any(fields)).Logger()}
}

// natsServerLogger adapts zerolog to the nats-server logger interface.
type natsServerLogger struct {
	log zerolog.Logger
}

func (n natsServerLogger) Noticef(format string, v ...any) { n.log.Info().Msgf(format, v...) }
func (n natsServerLogger) Warnf(format string, v ...any)   { n.log.Warn().Msgf(format, v...) }
func (n natsServerLogger) Fatalf(format string, v ...any)  { n.log.Error().Msgf(format, v...) }
func (n natsServerLogger) Errorf(format string, v ...any)  { n.log.Error().Msgf(format, v...) }
func (n natsServerLogger) Debugf(format string, v ...any)  { n.log.Debug().Msgf(format, v...) }
func (n natsServerLogger) Tracef(format string, v ...any)  { n.log.Trace().Msgf(format, v...) }
