package middleware

import (
	"net/http"
	"runtime/debug"

	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/logger"
	pnet "murmur/internal/platform/net"
	phttp "murmur/internal/platform/net/http"
)

// RecoverJSON turns a panic into a JSON 500 envelope and logs the stack
// http.ErrAbortHandler is re-raised so the server can drop the connection
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			reqID := pnet.RequestID(r.Context())
			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}
			phttp.JSON(w, http.StatusInternalServerError, phttp.ErrorEnvelope(perr.PanicErrf("panic recovered"), reqID))
		}()
		next.ServeHTTP(w, r)
	})
}
