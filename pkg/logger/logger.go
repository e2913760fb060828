// Package logger builds the zerolog loggers used across the server.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

type LogBuild struct {
	writer io.Writer
	path   string
	level  string
	pretty bool
}

type LogData struct {
	writer  io.Writer
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{}
}

// FromPath appends log output to a file, created if missing.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

// FromBuffer redirects log output, used by tests.
func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// Level sets the minimum level by name ("debug", "info", ...). An empty or
// unknown name keeps the zerolog default.
func (build *LogBuild) Level(level string) *LogBuild {
	build.level = level
	return build
}

// Pretty switches to the human-readable console writer, for interactive
// use.
func (build *LogBuild) Pretty() *LogBuild {
	build.pretty = true
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	logData.writer = os.Stdout
	if build.writer != nil {
		logData.writer = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		logData.writer = zerolog.SyncWriter(logData.LogFile)
	}
	if build.pretty {
		logData.writer = zerolog.ConsoleWriter{Out: logData.writer}
	}
	logger := zerolog.New(logData.writer).With().Timestamp().Logger()
	if build.level != "" {
		if lvl, parseErr := zerolog.ParseLevel(build.level); parseErr == nil {
			logger = logger.Level(lvl)
		}
	}
	logData.Logger = logger
	return
}
