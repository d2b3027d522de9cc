// Package httpkit re-exports the platform http surface for modules
// modules import this rather than internal/platform/net/http
package httpkit

import (
	"net/http"
	"strconv"

	perr "murmur/internal/platform/errors"
	pnet "murmur/internal/platform/net"
	phttp "murmur/internal/platform/net/http"
)

type (
	// Envelope is the transport envelope type
	Envelope = phttp.Envelope

	// Page is the pagination metadata type
	Page = phttp.Page

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is a re-export of the platform router seam
	Router = phttp.Router
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Created returns a 201 response
func Created(data any) Response { return phttp.Created(data) }

// NoContent returns a 204 response
func NoContent() Response { return phttp.NoContent() }

// Error returns a response that maps an error to status and envelope
func Error(err error) Response { return phttp.Error(err) }

// List returns a 200 response with items and a page block
func List(items any, page Page) Response { return phttp.List(items, page) }

// Handle adapts a Response returning function
func Handle(fn func(*http.Request) Response) Handler { return phttp.Handle(fn) }

// Call adapts a body-less handler
func Call(fn func(*http.Request) (any, error)) Handler { return phttp.Call(fn) }

// JSON adapts a body handler, the body is decoded and validated first
func JSON[T any](fn func(*http.Request, T) (any, error)) Handler { return phttp.JSONHandler[T](fn) }

// Param reads a chi path parameter
func Param(r *http.Request, name string) string { return phttp.Param(r, name) }

// Viewer is the user id the request acts for, 0 when anonymous
func Viewer(r *http.Request) int64 { return pnet.ViewerID(r.Context()) }

// ParamInt64 reads a positive integer path parameter
func ParamInt64(r *http.Request, name string) (int64, error) {
	raw := phttp.Param(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, perr.WithField(perr.Validationf("%s must be a positive integer", name), name)
	}
	return id, nil
}
