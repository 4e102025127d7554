// Package logrus adapts a *logrus.Entry to intern.Logger.
package logrus

import (
	"github.com/IvanBrykalov/internslice/intern"
	"github.com/sirupsen/logrus"
)

type LogrusLogger struct{ E *logrus.Entry }

func (l LogrusLogger) Debug(msg string, f intern.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f intern.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f intern.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f intern.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}

var _ intern.Logger = LogrusLogger{}
