package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface for logging to.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatal(args ...interface{})

	// Sublogger returns a logger named "<name>.<subname>" writing to the same outputs.
	// Subloggers share the level of their parent.
	Sublogger(subname string) Logger
	SetLevel(level Level)
	GetLevel() Level
	AsZap() *zap.SugaredLogger
	Sync() error
}

type impl struct {
	*zap.SugaredLogger

	name  string
	level zap.AtomicLevel
}

func newImpl(name string, level zap.AtomicLevel, cores ...zapcore.Core) *impl {
	sugar := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
	if name != "" {
		sugar = sugar.Named(name)
	}
	return &impl{SugaredLogger: sugar, name: name, level: level}
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{
		SugaredLogger: imp.SugaredLogger.Named(subname),
		name:          newName,
		level:         imp.level,
	}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return levelFromZap(imp.level.Level())
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.SugaredLogger
}
