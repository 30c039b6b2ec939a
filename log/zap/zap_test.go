package zap

import (
	"errors"
	"testing"

	"github.com/IvanBrykalov/rescache/cache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Warn("load failed", cache.Fields{"key": "k", "err": errors.New("boom")})
	l.Debug("load start", nil)

	if logs.Len() != 2 {
		t.Fatalf("want 2 entries, got %d", logs.Len())
	}
	e := logs.All()[0]
	if e.Level != zapcore.WarnLevel || e.Message != "load failed" {
		t.Fatalf("unexpected entry: %+v", e.Entry)
	}
	ctx := e.ContextMap()
	if ctx["key"] != "k" || ctx["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", ctx)
	}
}
