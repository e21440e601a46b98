package logger

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the storefront logger. Production logs JSON, every other
// environment logs coloured console lines. level overrides the
// environment default when it parses.
func New(env, level string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Encoding = "json"
		config.EncoderConfig = encoderConfig(env)
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, ok := parseLevel(level); ok {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	// Always log to stdout for container compatibility
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// NewWithWriter builds a JSON logger writing to w, used where output has to be captured
func NewWithWriter(env, level string, w io.Writer) *zap.Logger {
	lvl, ok := parseLevel(level)
	if !ok {
		lvl = zapcore.InfoLevel
		if env != "production" {
			lvl = zapcore.DebugLevel
		}
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig(env)),
		zapcore.AddSync(w),
		lvl,
	)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
}

func encoderConfig(env string) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	if env != "production" {
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return cfg
}

func parseLevel(level string) (zapcore.Level, bool) {
	if level == "" {
		return zapcore.InfoLevel, false
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}
