package config

import (
	"greenbot/pkg/logger"
)

// ToLoggerConfig converts LoggerConfig to logger.Config.
// Unknown levels fall back to info; the validator reports them separately.
func (lc *LoggerConfig) ToLoggerConfig() *logger.Config {
	level, err := logger.ParseLevel(lc.Level)
	if err != nil {
		level = logger.LevelInfo
	}

	return &logger.Config{
		Level:            level,
		OutputPath:       expandPath(lc.OutputPath),
		MaxSize:          lc.MaxSize,
		MaxBackups:       lc.MaxBackups,
		MaxAge:           lc.MaxAge,
		Compress:         lc.Compress,
		Development:      lc.Development,
		EnableStacktrace: true,
	}
}
