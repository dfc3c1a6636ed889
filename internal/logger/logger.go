package logger

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Config 日志配置
type Config struct {
	Level  string // debug/info/warn/error，默认 info
	Format string // text（默认）或 json
}

// Init configures the global logrus logger.
// It is safe to call multiple times; later calls overwrite previous settings.
func Init(cfg Config) {
	log.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	levelStr := cfg.Level
	if levelStr == "" {
		levelStr = "info"
	}
	if lvl, err := log.ParseLevel(levelStr); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// L returns the global logger for convenience.
func L() *log.Logger { return log.StandardLogger() }

// WithChat 返回带会话字段的日志条目
func WithChat(chatID int64) *log.Entry {
	return log.WithField("chat_id", chatID)
}
