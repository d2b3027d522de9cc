package http

import (
	"net/http"

	"murmur/internal/platform/net/http/bind"
)

// BodyHandler receives the decoded and validated body
type BodyHandler[T any] func(*http.Request, T) (any, error)

// NoBodyHandler works from the path and query only
type NoBodyHandler func(*http.Request) (any, error)

// wrap turns a result into a Response, a Response result passes through untouched
func wrap(out any, err error) Response {
	if err != nil {
		return Error(err)
	}
	if resp, ok := out.(Response); ok {
		return resp
	}
	return OK(out)
}

// JSONHandler adapts a body handler to a platform Handler
func JSONHandler[T any](fn BodyHandler[T]) Handler {
	return Handle(func(r *http.Request) Response {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return Error(err)
		}
		return wrap(fn(r, in))
	})
}

// Call adapts a body-less handler to a platform Handler
func Call(fn NoBodyHandler) Handler {
	return Handle(func(r *http.Request) Response { return wrap(fn(r)) })
}

// GetJSON mounts a body-less handler under GET
func GetJSON(r Router, path string, h NoBodyHandler) { r.Get(path, Call(h)) }

// DeleteJSON mounts a body-less handler under DELETE
func DeleteJSON(r Router, path string, h NoBodyHandler) { r.Delete(path, Call(h)) }

// PostJSON mounts a body handler under POST
func PostJSON[T any](r Router, path string, h BodyHandler[T]) { r.Post(path, JSONHandler(h)) }

// PutJSON mounts a body handler under PUT
func PutJSON[T any](r Router, path string, h BodyHandler[T]) { r.Put(path, JSONHandler(h)) }
