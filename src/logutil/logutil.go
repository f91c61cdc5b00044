package logutil

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultLogFile = "sst_debug.log"
	maxSizeMB      = 10
	maxArchives    = 3
)

type Options struct {
	Verbose           bool
	EnableFileLogging bool
	LogFile           string
}

// Setup routes the standard logrus logger: warnings and errors always reach
// stderr (info and debug too when verbose); with file logging enabled every
// level is also appended to a size-rotated file (10MB, max 3 archives).
// The returned closer releases the log file.
func Setup(opts Options) (io.Closer, error) {
	return setup(log.StandardLogger(), os.Stderr, opts)
}

func setup(l *log.Logger, stderr io.Writer, opts Options) (io.Closer, error) {
	l.SetOutput(io.Discard)
	l.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true})
	l.ReplaceHooks(make(log.LevelHooks))

	stderrLevel := log.WarnLevel
	if opts.Verbose {
		stderrLevel = log.DebugLevel
	}
	l.AddHook(&writer.Hook{Writer: stderr, LogLevels: levelsUpTo(stderrLevel)})
	l.SetLevel(stderrLevel)

	if !opts.EnableFileLogging {
		return nopCloser{}, nil
	}

	path := opts.LogFile
	if path == "" {
		path = DefaultLogFile
	}
	w := newFileWriter(path)
	l.AddHook(&writer.Hook{Writer: w, LogLevels: levelsUpTo(log.DebugLevel)})
	l.SetLevel(log.DebugLevel)
	return w, nil
}

func newFileWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxArchives,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func levelsUpTo(limit log.Level) []log.Level {
	var levels []log.Level
	for _, lvl := range log.AllLevels {
		if lvl <= limit {
			levels = append(levels, lvl)
		}
	}
	return levels
}
