// Package logrus adapts a *logrus.Entry to cache.Logger.
package logrus

import (
	"github.com/IvanBrykalov/rescache/cache"
	"github.com/sirupsen/logrus"
)

var _ cache.Logger = LogrusLogger{}

// LogrusLogger implements cache.Logger on a *logrus.Entry. An error stored
// under "err" is moved to logrus.ErrorKey so hooks and formatters treat it
// as the entry's error.
type LogrusLogger struct{ E *logrus.Entry }

// Debug, Info, Warn and Error log at the matching logrus level.
func (l LogrusLogger) Debug(msg string, f cache.Fields) { l.log(logrus.DebugLevel, msg, f) }
func (l LogrusLogger) Info(msg string, f cache.Fields)  { l.log(logrus.InfoLevel, msg, f) }
func (l LogrusLogger) Warn(msg string, f cache.Fields)  { l.log(logrus.WarnLevel, msg, f) }
func (l LogrusLogger) Error(msg string, f cache.Fields) { l.log(logrus.ErrorLevel, msg, f) }

func (l LogrusLogger) log(lvl logrus.Level, msg string, f cache.Fields) {
	if !l.E.Logger.IsLevelEnabled(lvl) {
		return
	}
	e := l.E
	if len(f) > 0 {
		lf := make(logrus.Fields, len(f))
		for k, v := range f {
			if _, ok := v.(error); ok && k == "err" {
				k = logrus.ErrorKey
			}
			lf[k] = v
		}
		e = e.WithFields(lf)
	}
	e.Log(lvl, msg)
}
