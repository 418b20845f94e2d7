package ulogger

import (
	"io"
	"os"

	"github.com/ordishs/gocore"
)

type Options struct {
	logLevel   string
	loggerType string
	writer     io.Writer
}

type Option func(*Options)

func DefaultOptions() *Options {
	logLevel, _ := gocore.Config().Get("logLevel", "INFO")
	loggerType, _ := gocore.Config().Get("logger", "zerolog")

	return &Options{
		logLevel:   logLevel,
		loggerType: loggerType,
		writer:     os.Stdout,
	}
}

func WithLevel(level string) Option {
	return func(o *Options) {
		o.logLevel = level
	}
}

func WithLoggerType(loggerType string) Option {
	return func(o *Options) {
		o.loggerType = loggerType
	}
}

func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.writer = w
	}
}
