package logsvc

import (
	"context"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/user"
)

// RollbarLogger reports to Rollbar and prints to std.
// Debug entries are only printed in debug mode.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
	debug  bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.New(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, "")
	client.SetStackTracer(errors.StackTracer)
	client.SetEnabled(conf.RollbarToken != "")
	return &RollbarLogger{std: std, client: client, debug: conf.Debug}
}

// Enable turns reporting to Rollbar on or off. It is always off without a token.
func (l *RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled && l.client.Token() != "")
}

// Close waits for the queued reports to be sent.
func (l *RollbarLogger) Close() {
	l.client.Close()
}

// prepare turns args into rollbar.Client.Log arguments. Expected args: error, map[string]interface{}, user.User.
// The first User becomes the Rollbar person of the entry.
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	ctx := context.Background()
	newArgs := make([]interface{}, 0, len(args)+2)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			if !usrSet {
				ctx = rollbar.NewPersonContext(ctx, &rollbar.Person{Id: usr.ID, Username: usr.Username, Email: usr.Email})
				usrSet = true
			}
			continue
		}
		newArgs = append(newArgs, arg)
	}
	return append(newArgs, ctx)
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			l.std.Printf("\tuser: %s (%s)", usr.ID, usr.Username)
			continue
		}
		l.std.Printf("\t%+v", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.client.Log(rollbar.DEBUG, l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.client.Log(rollbar.INFO, l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.client.Log(rollbar.WARN, l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.client.Log(rollbar.ERR, l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.client.Log(rollbar.CRIT, l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	l.client.Close()
	l.std.Fatal(msg)
}
