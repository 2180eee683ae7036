// Package errlog logs errors with the structured context carried by
// samber/oops errors.
package errlog

import (
	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

// Log writes err at error level.  For oops errors the code and context are
// added as fields; other errors are logged as-is.
func Log(log zerolog.Logger, msg string, err error) {
	ev := log.Error().Err(err)
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			ev = ev.Interface("code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			ev = ev.Interface("context", ctx)
		}
	}
	ev.Msg(msg)
}
