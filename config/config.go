// This package defines the config struct shared by the codec facade and the command line tool.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meow-io/go-bencodetools/bencode"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Debug         bool
	RootDir       string
	LogFile       string
	LoggingPrefix string
	// Maximum nesting of lists and dictionaries accepted when parsing.
	MaxDepth int
	// Accept several concatenated top-level values instead of exactly one.
	Stream bool
	writer io.Writer
}

func (c Config) Logger(source string) *zap.SugaredLogger {
	var p string
	if source == "" {
		p = c.LoggingPrefix
	} else {
		p = fmt.Sprintf("%s:%s", c.LoggingPrefix, source)
	}

	level := zapcore.InfoLevel
	if c.Debug {
		level = zapcore.DebugLevel
	}
	opts := []zap.Option{
		zap.Fields(zap.String("source", p)),
	}

	de := zap.NewDevelopmentEncoderConfig()
	fileEncoder := zapcore.NewJSONEncoder(de)
	consoleEncoder := zapcore.NewConsoleEncoder(de)
	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, zapcore.AddSync(c.writer), level),
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
	)
	logger := zap.New(core, opts...)
	return logger.Sugar()
}

// Decoder options matching this config.
func (c Config) DecoderOptions() []bencode.DecoderOption {
	opts := []bencode.DecoderOption{bencode.WithMaxDepth(c.MaxDepth)}
	if c.Stream {
		opts = append(opts, bencode.WithStream())
	}
	return opts
}

type Option func(*Config)

func WithDebug(d bool) Option {
	return func(c *Config) {
		c.Debug = d
	}
}

func WithRootDir(d string) Option {
	return func(c *Config) {
		c.RootDir = d
	}
}

// Name of the rotating log file, relative to the root dir.
func WithLogFile(f string) Option {
	return func(c *Config) {
		c.LogFile = f
	}
}

func WithLoggingPrefix(p string) Option {
	return func(c *Config) {
		c.LoggingPrefix = p
	}
}

func WithMaxDepth(n int) Option {
	return func(c *Config) {
		c.MaxDepth = n
	}
}

func WithStream(s bool) Option {
	return func(c *Config) {
		c.Stream = s
	}
}

// Replaces the rotating log file with w.
func WithLogWriter(w io.Writer) Option {
	return func(c *Config) {
		c.writer = w
	}
}

func NewConfig(opts ...Option) *Config {
	c := &Config{
		Debug:         os.Getenv("DEBUG") == "1",
		RootDir:       ".",
		LogFile:       "bencode.log",
		LoggingPrefix: "bencode",
		MaxDepth:      bencode.DefaultMaxDepth,
		Stream:        false,

		writer: nil,
	}
	for _, o := range opts {
		o(c)
	}

	if c.writer == nil {
		c.writer = &lumberjack.Logger{
			Filename:   filepath.Join(c.RootDir, c.LogFile),
			MaxSize:    500, // megabytes
			MaxBackups: 3,
			MaxAge:     28,   // days
			Compress:   true, // disabled by default
		}
	}
	return c
}
