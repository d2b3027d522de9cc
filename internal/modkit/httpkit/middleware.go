package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"murmur/internal/platform/net/middleware"
)

// StackOptions tunes CommonStack
type StackOptions struct {
	Viewer  middleware.ViewerPort
	CORS    middleware.CORSOptions
	Timeout time.Duration
	Slow    time.Duration
}

// CommonStack is the baseline api middleware, request id and viewer come before the access log
func CommonStack(o StackOptions) []func(http.Handler) http.Handler {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Viewer == nil {
		o.Viewer = middleware.HeaderViewer{}
	}
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.Viewer(o.Viewer),
		middleware.AccessLog(middleware.AccessLogOptions{Slow: o.Slow}),
		middleware.RecoverJSON,
		middleware.NoCache(),
		middleware.CORS(o.CORS),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/health"),
		middleware.StripSlashes(),
		middleware.Timeout(o.Timeout),
	}
}
