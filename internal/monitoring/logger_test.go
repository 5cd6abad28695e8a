package monitoring

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	// Save original logger
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_DefaultGoesToZap(t *testing.T) {
	original := Logger()
	defer ReplaceLogger(original)

	core, logs := observer.New(zapcore.DebugLevel)
	ReplaceLogger(zap.New(core).Sugar())

	defaultLogf("[Registry] job %s queued", "abc")
	Warnf("[Colmap] %d images skipped", 2)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message != "[Registry] job abc queued" || entries[0].Level != zapcore.InfoLevel {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("second entry level = %v, want warn", entries[1].Level)
	}
}

func TestSetLevel(t *testing.T) {
	defer func() { _ = SetLevel("info") }()

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug): %v", err)
	}
	if !level.Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled")
	}
	if err := SetLevel("error"); err != nil {
		t.Fatalf("SetLevel(error): %v", err)
	}
	if level.Enabled(zapcore.WarnLevel) {
		t.Error("warn should be disabled at error level")
	}
	if err := SetLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestReplaceLogger_Nil(t *testing.T) {
	original := Logger()
	defer ReplaceLogger(original)

	ReplaceLogger(nil)
	Errorf("should not panic")
}
