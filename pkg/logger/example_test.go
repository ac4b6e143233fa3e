package logger_test

import (
	"go.uber.org/zap"

	"greenbot/pkg/logger"
)

// Example_basicUsage demonstrates basic logger usage.
func Example_basicUsage() {
	cfg := logger.DefaultConfig()
	cfg.Development = true
	cfg.OutputPath = "" // stdout only

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("Webhook server starting",
		zap.String("host", "0.0.0.0"),
		zap.Int("port", 4567),
	)
}

// Example_withFields demonstrates a per-event child logger.
func Example_withFields() {
	cfg := logger.DefaultConfig()
	cfg.OutputPath = ""

	log, _ := logger.New(cfg)
	defer log.Sync()

	eventLog := log.WithFields(
		zap.String("type_webhook", "incomingMessageReceived"),
		zap.String("sender", "79001234567@c.us"),
	)
	eventLog.Info("Event routed")
}

// Example_runtimeLevel demonstrates switching the level without rebuilding the logger.
func Example_runtimeLevel() {
	cfg := logger.DefaultConfig()
	cfg.OutputPath = ""

	log, _ := logger.New(cfg)
	defer log.Sync()

	log.Debug("Hidden at info level")
	_ = log.SetLevel(logger.LevelDebug)
	log.Debug("Visible after SetLevel")
}
