package middleware

import (
	"net/http"
	"strconv"
	"strings"

	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/logger"
	pnet "murmur/internal/platform/net"
	phttp "murmur/internal/platform/net/http"
)

// ViewerHeader carries the id of the user a trusted upstream authenticated
const ViewerHeader = "X-Viewer-ID"

// ViewerPort resolves who the request acts for, 0 means anonymous
type ViewerPort interface {
	Viewer(r *http.Request) (int64, error)
}

// HeaderViewer trusts ViewerHeader as set by the gateway in front of the api
type HeaderViewer struct{}

// Viewer parses ViewerHeader, a missing header is anonymous
func (HeaderViewer) Viewer(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(ViewerHeader))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, perr.WithField(perr.Unauthorizedf("invalid viewer id"), ViewerHeader)
	}
	return id, nil
}

// Viewer stores the resolved viewer on the request context and on the request logger
// a nil port leaves every request anonymous
func Viewer(p ViewerPort) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var id int64
			if p != nil {
				v, err := p.Viewer(r)
				if err != nil {
					phttp.JSON(w, perr.HTTPStatus(err), phttp.ErrorEnvelope(err, pnet.RequestID(ctx)))
					return
				}
				id = v
			}
			ctx = pnet.WithViewer(ctx, id)
			ctx = logger.WithRequest(ctx, pnet.RequestID(ctx), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
