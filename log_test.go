package xmlrpc

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDebugLogger(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	SetDebugLogger(zap.New(core))
	t.Cleanup(func() { SetDebugLogger(nil) })

	// Types local to this test, so that no other test has already
	// derived their codecs.
	type logSample struct {
		A int32
	}
	type badLogSample struct {
		F func(logSample)
	}

	if _, err := Marshal(logSample{1}); err != nil {
		t.Fatal(err)
	}
	var out logSample
	if err := Unmarshal(Struct{{"A", Int(1)}}, &out); err != nil {
		t.Fatal(err)
	}
	if _, err := Marshal(badLogSample{}); err == nil {
		t.Fatal("Marshal of a func field succeeded")
	}

	sampleType := reflect.TypeFor[logSample]().String()
	checkLogged := func(msg, typ string) {
		t.Helper()
		for _, e := range obs.FilterMessage(msg).All() {
			if e.LoggerName != "xmlrpc" {
				t.Errorf("%q logged by %q, want logger xmlrpc", msg, e.LoggerName)
			}
			if e.ContextMap()["type"] == typ {
				return
			}
		}
		t.Errorf("no %q log entry for type %s, got %v", msg, typ, obs.All())
	}
	checkLogged("derived encoder", sampleType)
	checkLogged("derived decoder", sampleType)
	checkLogged("no encoder for type", reflect.TypeFor[func(logSample)]().String())

	// Codecs are cached, so each type is traced only once.
	n := obs.Len()
	if _, err := Marshal(logSample{2}); err != nil {
		t.Fatal(err)
	}
	if obs.Len() != n {
		t.Errorf("second Marshal of the same type logged %d new entries", obs.Len()-n)
	}
}

func TestDebugLoggerOff(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	SetDebugLogger(zap.New(core))
	SetDebugLogger(nil)

	type quietSample struct {
		A string
	}
	if _, err := Marshal(quietSample{"x"}); err != nil {
		t.Fatal(err)
	}
	if obs.Len() != 0 {
		t.Errorf("disabled debug logger received %d entries", obs.Len())
	}
}
