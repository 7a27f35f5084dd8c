package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)

	logger.Debugw("debug line", "key", "value")
	logger.Infof("info %d", 5)
	logger.Warn("warn line")

	test.That(t, logs.Len(), test.ShouldEqual, 3)
	entries := logs.All()
	test.That(t, entries[0].Message, test.ShouldEqual, "debug line")
	test.That(t, entries[0].Level, test.ShouldEqual, zapcore.DebugLevel)
	test.That(t, entries[0].ContextMap()["key"], test.ShouldEqual, "value")
	test.That(t, entries[1].Message, test.ShouldEqual, "info 5")
	test.That(t, entries[2].Level, test.ShouldEqual, zapcore.WarnLevel)
}

func TestSetLevel(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)

	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Error("kept")
	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].Message, test.ShouldEqual, "kept")
}

func TestSublogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("estimate").Sublogger("plane")
	sub.Info("hello")

	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].LoggerName, test.ShouldEqual, "estimate.plane")

	logger.SetLevel(ERROR)
	test.That(t, sub.GetLevel(), test.ShouldEqual, ERROR)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		t.Run(tc.input, func(t *testing.T) {
			level, err := LevelFromString(tc.input)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, level, test.ShouldEqual, tc.expected)
			test.That(t, levelFromZap(level.AsZap()), test.ShouldEqual, tc.expected)
		})
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown log level")
}

func TestBlankLogger(t *testing.T) {
	logger := NewBlankLogger("blank")
	logger.Info("goes nowhere")
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, logger.AsZap(), test.ShouldNotBeNil)
}
