package logsvc

import (
	"fmt"
	"net/http"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
)

// RollbarLogger reports to rollbar and writes structured entries through zap.
type RollbarLogger struct {
	log *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewZapLogger returns the zap logger fitting the config: silent in test mode,
// human-readable in debug mode and JSON otherwise.
func NewZapLogger(conf *core.Config) (*zap.Logger, error) {
	switch {
	case conf.TestMode:
		return zap.NewNop(), nil
	case conf.Debug:
		return zap.NewDevelopment()
	default:
		return zap.NewProduction(zap.Fields(zap.String("app", conf.AppName), zap.String("build", conf.Build)))
	}
}

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	host, _ := os.Hostname()
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{log: zl.Sugar()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes buffered entries.
func (l RollbarLogger) Sync() {
	_ = l.log.Sync()
	rollbar.Wait()
}

// expected fmt: msg | error, map[string]interface{}, *http.Request
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	return append(newArgs, args...)
}

func (l RollbarLogger) fields(args []interface{}) []interface{} {
	fields := make([]interface{}, 0, 2*len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case error:
			fields = append(fields, zap.Error(a))
		case map[string]interface{}:
			for k, v := range a {
				fields = append(fields, k, v)
			}
		case *http.Request:
			fields = append(fields, "method", a.Method, "uri", a.RequestURI)
		default:
			fields = append(fields, fmt.Sprintf("arg%d", i), a)
		}
	}
	return fields
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.log.Debugw(msg, l.fields(args)...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.log.Infow(msg, l.fields(args)...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.log.Warnw(msg, l.fields(args)...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.log.Errorw(msg, l.fields(args)...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.log.Fatalw(msg, l.fields(args)...)
}
