package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/config"
)

// Logger wraps zap.SugaredLogger with board-specific helpers.
type Logger struct {
	*zap.SugaredLogger
}

// New builds a logger from configuration. Format "json" selects zap's
// production encoder; anything else gets the colored development console.
func New(cfg config.LoggerConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "ts"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	if cfg.Output == "file" && cfg.Filename != "" {
		zapConfig.OutputPaths = []string{cfg.Filename}
		zapConfig.ErrorOutputPaths = []string{cfg.Filename}
	}

	zapLogger, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) with(fields ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(fields...)}
}

func (l *Logger) WithError(err error) *Logger {
	return l.with("error", err.Error())
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with("request_id", requestID)
}

// WithComponent tags every entry with the subsystem that wrote it.
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// LogHTTPRequest records a completed request.
func (l *Logger) LogHTTPRequest(requestID, method, path, userAgent, ip string, statusCode int, durationMS float64) {
	l.Infow("HTTP request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration_ms", durationMS,
		"user_agent", userAgent,
		"ip", ip,
	)
}

// LogActivity mirrors a board activity entry into the log. Nil entries
// (anonymous writes) are ignored.
func (l *Logger) LogActivity(entry *entities.ActivityLog) {
	if entry == nil {
		return
	}

	fields := []interface{}{
		"activity", entry.Type,
		"user_id", entry.UserID,
	}
	if entry.TaskID != nil {
		fields = append(fields, "task_id", *entry.TaskID)
	}
	if entry.FromStatus != nil && entry.ToStatus != nil {
		fields = append(fields, "from", *entry.FromStatus, "to", *entry.ToStatus)
	}

	l.Infow(entry.Message, fields...)
}

func (l *Logger) LogUserAction(userID int64, action string, metadata map[string]interface{}) {
	l.Infow("User action", appendFields([]interface{}{"user_id", userID, "action", action}, metadata)...)
}

// LogSecurityEvent records denied or suspicious requests at warn level.
func (l *Logger) LogSecurityEvent(event string, userID int64, details map[string]interface{}) {
	l.Warnw("Security event", appendFields([]interface{}{"security_event", event, "user_id", userID}, details)...)
}

func appendFields(fields []interface{}, extra map[string]interface{}) []interface{} {
	for k, v := range extra {
		fields = append(fields, k, v)
	}
	return fields
}

// Close flushes buffered entries.
func (l *Logger) Close() error {
	return l.SugaredLogger.Sync()
}
