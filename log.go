package wlgb

import (
	"os"

	"github.com/charmbracelet/log"
)

// PrintLog controls whether WLGB emits log messages to stderr. By default,
// it is enabled.
var PrintLog = true

// Logger is shared by every package of this module so that a program has a
// single place to change the level or silence output.
var Logger = newLogger()

// wlglog is a wrapper around a charmbracelet logger so we can control
// whether it should output anything.
type wlglog struct {
	*log.Logger
}

func newLogger() wlglog {
	return wlglog{log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "WLGB",
		Level:  log.InfoLevel,
	})}
}

// SetDebug switches between debug and info verbosity.
func (lg wlglog) SetDebug(on bool) {
	if on {
		lg.Logger.SetLevel(log.DebugLevel)
	} else {
		lg.Logger.SetLevel(log.InfoLevel)
	}
}

func (lg wlglog) Debug(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Debug(msg, keyvals...)
	}
}

func (lg wlglog) Debugf(format string, v ...interface{}) {
	if PrintLog {
		lg.Logger.Debugf(format, v...)
	}
}

func (lg wlglog) Info(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Info(msg, keyvals...)
	}
}

func (lg wlglog) Infof(format string, v ...interface{}) {
	if PrintLog {
		lg.Logger.Infof(format, v...)
	}
}

func (lg wlglog) Warn(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Warn(msg, keyvals...)
	}
}

func (lg wlglog) Warnf(format string, v ...interface{}) {
	if PrintLog {
		lg.Logger.Warnf(format, v...)
	}
}

func (lg wlglog) Error(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Error(msg, keyvals...)
	}
}

func (lg wlglog) Errorf(format string, v ...interface{}) {
	if PrintLog {
		lg.Logger.Errorf(format, v...)
	}
}

func (lg wlglog) Fatal(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Fatal(msg, keyvals...)
	} else {
		os.Exit(1)
	}
}

func (lg wlglog) Fatalf(format string, v ...interface{}) {
	if PrintLog {
		lg.Logger.Fatalf(format, v...)
	} else {
		os.Exit(1)
	}
}
