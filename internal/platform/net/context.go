// Package net carries request scoped identity through contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey struct{}

// WithViewer stores the id of the user the request acts for, 0 means anonymous
func WithViewer(ctx context.Context, viewerID int64) context.Context {
	if viewerID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, viewerID)
}

// ViewerID returns the viewer on ctx, 0 when anonymous
func ViewerID(ctx context.Context) int64 {
	v, _ := ctx.Value(ctxKey{}).(int64)
	return v
}

// WithRequestID stores reqID where chi's RequestID middleware would
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, reqID)
}

// RequestID returns the request id on ctx if present
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }
