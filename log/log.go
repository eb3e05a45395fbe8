package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Root is the process-wide logger. Its level is left at trace; the
// child loggers decide what gets through.
var Root = &logrus.Logger{
	Out:   os.Stderr,
	Hooks: make(logrus.LevelHooks),
	Level: logrus.TraceLevel,
	Formatter: &prefixed.TextFormatter{
		DisableColors: func() bool {
			term, ok := os.LookupEnv("TERM")
			return term == "" || !ok
		}(),
		ForceFormatting: true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	},
}

// ChildLogger logs to a parent with a fixed prefix and its own level.
type ChildLogger struct {
	parent *logrus.Logger
	prefix string
	level  logrus.Level
}

func NewChildLogger(parent *logrus.Logger, prefix string, level logrus.Level) *ChildLogger {
	return &ChildLogger{
		parent: parent,
		prefix: prefix,
		level:  level,
	}
}

func (l *ChildLogger) entry(level logrus.Level) *logrus.Entry {
	if l == nil || l.level < level {
		return nil
	}
	return l.parent.WithField("prefix", l.prefix)
}

func (l *ChildLogger) Debug(args ...interface{}) {
	if e := l.entry(logrus.DebugLevel); e != nil {
		e.Debug(args...)
	}
}

func (l *ChildLogger) Info(args ...interface{}) {
	if e := l.entry(logrus.InfoLevel); e != nil {
		e.Info(args...)
	}
}

func (l *ChildLogger) Warning(args ...interface{}) {
	if e := l.entry(logrus.WarnLevel); e != nil {
		e.Warning(args...)
	}
}

func (l *ChildLogger) Error(args ...interface{}) {
	if e := l.entry(logrus.ErrorLevel); e != nil {
		e.Error(args...)
	}
}

func (l *ChildLogger) Debugf(format string, args ...interface{}) {
	if e := l.entry(logrus.DebugLevel); e != nil {
		e.Debugf(format, args...)
	}
}

func (l *ChildLogger) Infof(format string, args ...interface{}) {
	if e := l.entry(logrus.InfoLevel); e != nil {
		e.Infof(format, args...)
	}
}

func (l *ChildLogger) Warningf(format string, args ...interface{}) {
	if e := l.entry(logrus.WarnLevel); e != nil {
		e.Warningf(format, args...)
	}
}

func (l *ChildLogger) Errorf(format string, args ...interface{}) {
	if e := l.entry(logrus.ErrorLevel); e != nil {
		e.Errorf(format, args...)
	}
}

func (l *ChildLogger) IsDebug() bool {
	return l != nil && l.level >= logrus.DebugLevel
}

// DebugFlags switch individual subsystems to debug level regardless
// of the base level.
type DebugFlags struct {
	USB   bool
	BLE   bool
	Proto bool
	Data  bool
}

type Children struct {
	USB   *ChildLogger
	BLE   *ChildLogger
	Proto *ChildLogger
	Data  *ChildLogger
	CLI   *ChildLogger
}

func PrepareChildren(parent *logrus.Logger, base logrus.Level, flags DebugFlags) *Children {
	lvl := func(debug bool) logrus.Level {
		if debug && base < logrus.DebugLevel {
			return logrus.DebugLevel
		}
		return base
	}
	return &Children{
		USB:   NewChildLogger(parent, "usb", lvl(flags.USB)),
		BLE:   NewChildLogger(parent, "ble", lvl(flags.BLE)),
		Proto: NewChildLogger(parent, "proto", lvl(flags.Proto)),
		Data:  NewChildLogger(parent, "data", lvl(flags.Data)),
		CLI:   NewChildLogger(parent, "cli", base),
	}
}

// Quiet returns children that only report errors.
func Quiet() *Children {
	return PrepareChildren(Root, logrus.ErrorLevel, DebugFlags{})
}

type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AddFile copies everything logged on parent into a size-rotated
// file. Close the returned value on exit.
func AddFile(parent *logrus.Logger, cfg FileConfig) io.Closer {
	lj := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	parent.SetOutput(io.MultiWriter(parent.Out, lj))
	return lj
}
