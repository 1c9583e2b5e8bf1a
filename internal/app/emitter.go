package app

import (
	"context"

	"github.com/rs/zerolog"

	"blocknotes/internal/service"
)

// logEmitter turns service events into structured log lines. Failures log
// at warn, sweeps and page deletions at info, the rest at debug.
type logEmitter struct {
	log zerolog.Logger
}

var _ service.EventEmitter = logEmitter{}

func (e logEmitter) Emit(_ context.Context, event string, data any) {
	level := zerolog.DebugLevel
	switch event {
	case service.EventOrphanCleanFail, service.EventAssistantFailed, service.EventSweepFailed:
		level = zerolog.WarnLevel
	case service.EventSweepCompleted, service.EventPageDeleted:
		level = zerolog.InfoLevel
	}
	e.log.WithLevel(level).Str("event", event).Interface("data", data).Msg("service event")
}
