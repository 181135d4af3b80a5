package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger — общий логгер процесса. До InitLogger пишет текстом в stderr.
var Logger = logrus.New()

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `json:"level"`
	LogDir     string `json:"logDir"`     // пусто — только stdout
	MaxSize    int    `json:"maxSize"`    // megabytes
	MaxBackups int    `json:"maxBackups"` // number of files
	MaxAge     int    `json:"maxAge"`     // days
	Compress   bool   `json:"compress"`
}

// InitLogger настраивает JSON-логгер с ротацией файлов app.log и error.log.
func InitLogger(config LogConfig) error {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if config.LogDir == "" {
		l.SetOutput(os.Stdout)
		Logger = l
		return nil
	}

	if err := os.MkdirAll(config.LogDir, 0o755); err != nil {
		return err
	}
	allLogsFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, "app.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	errorLogsFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, "error.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	l.SetOutput(io.MultiWriter(os.Stdout, allLogsFile))
	l.AddHook(&ErrorFileHook{errorWriter: errorLogsFile})

	Logger = l
	return nil
}

// ErrorFileHook дублирует записи уровня error и выше в отдельный writer.
type ErrorFileHook struct {
	errorWriter io.Writer
}

func (hook *ErrorFileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	_, err = hook.errorWriter.Write([]byte(line))
	return err
}

func (hook *ErrorFileHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	}
}

func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func Info(args ...interface{}) {
	Logger.Info(args...)
}

func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	Logger.Fatalf(format, args...)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}
