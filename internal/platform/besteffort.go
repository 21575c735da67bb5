package platform

import (
	"modbot/internal/metrics"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Step names a platform call whose failure never aborts the surrounding action.
type Step string

const (
	StepDeleteMessage Step = "delete_message"
	StepDirectMessage Step = "direct_message"
	StepAuditChannel  Step = "audit_channel"
	StepAuditSend     Step = "audit_send"
	StepMuteOverwrite Step = "mute_overwrite"
	StepAutoUnmute    Step = "auto_unmute"
	StepReplyCleanup  Step = "reply_cleanup"
	StepGreeting      Step = "greeting"
	StepWelcome       Step = "welcome"
	StepInitGuild     Step = "init_guild"
)

// stepLevels is the level each swallowed failure is logged at. Members with
// DMs closed and messages already gone are routine, so those stay at debug.
var stepLevels = map[Step]zapcore.Level{
	StepDeleteMessage: zapcore.DebugLevel,
	StepDirectMessage: zapcore.DebugLevel,
	StepAuditChannel:  zapcore.WarnLevel,
	StepAuditSend:     zapcore.WarnLevel,
	StepMuteOverwrite: zapcore.DebugLevel,
	StepAutoUnmute:    zapcore.WarnLevel,
	StepReplyCleanup:  zapcore.DebugLevel,
	StepGreeting:      zapcore.DebugLevel,
	StepWelcome:       zapcore.WarnLevel,
	StepInitGuild:     zapcore.ErrorLevel,
}

// StepLevel returns the log level for a step, warn for unknown steps.
func StepLevel(step Step) zapcore.Level {
	if level, ok := stepLevels[step]; ok {
		return level
	}
	return zapcore.WarnLevel
}

// Swallow records a failed best-effort step and drops the error.
func Swallow(logger *zap.Logger, step Step, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	metrics.BestEffortFailuresTotal.WithLabelValues(string(step)).Inc()
	if logger == nil {
		return
	}
	if ce := logger.Check(StepLevel(step), "best-effort step failed"); ce != nil {
		ce.Write(append(fields, zap.String("step", string(step)), zap.Error(err))...)
	}
}
