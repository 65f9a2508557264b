package monitoring

import (
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestSetWarnLogger(t *testing.T) {
	original := Warnf
	defer func() { Warnf = original }()

	var got string
	SetWarnLogger(func(format string, v ...interface{}) {
		got = format
	})
	Warnf("goal %q skipped", "pickup")
	if got != "goal %q skipped" {
		t.Errorf("warn logger got format %q", got)
	}

	SetWarnLogger(nil)
	Warnf("should not panic")
}

func TestDefaultLoggersNotNil(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
	if Warnf == nil {
		t.Error("Warnf should not be nil by default")
	}
}
