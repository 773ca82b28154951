package mid

import (
	"context"
	"net/http"

	"github.com/platopia-network/platopia/business/web/errs"
	"github.com/platopia-network/platopia/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform
// way. Unexpected errors (status >= 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			log.Errorw("ERROR", "traceid", web.GetTraceID(ctx), "message", err)

			var resp errs.Response
			var status int

			switch {
			case errs.IsTrusted(err):
				trusted := errs.GetTrusted(err)
				resp = errs.Response{Error: trusted.Error(), Code: trusted.Code}
				status = trusted.Status

			default:
				resp = errs.Response{Error: http.StatusText(http.StatusInternalServerError), Code: errs.CodeInternalError}
				status = http.StatusInternalServerError
			}

			if err := web.Respond(ctx, w, resp, status); err != nil {
				return err
			}

			// If we receive the shutdown err we need to return it back to
			// the base handler to shut down the service.
			if web.IsShutdown(err) {
				return err
			}
			return nil
		}
		return h
	}
	return m
}
