// Package zap adapts a *zap.Logger to cache.Logger.
package zap

import (
	"github.com/IvanBrykalov/rescache/cache"
	"go.uber.org/zap"
)

var _ cache.Logger = ZapLogger{}

// ZapLogger implements cache.Logger; error values become zap error fields.
type ZapLogger struct{ L *zap.Logger }

// Debug, Info, Warn and Error log at the matching zap level.
func (z ZapLogger) Debug(msg string, f cache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f cache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f cache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f cache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f cache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
