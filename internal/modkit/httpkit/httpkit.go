// Package httpkit provides route mounting sugar shared by HTTP modules
package httpkit

import (
	"net/http"

	phttp "rolegate/internal/platform/net/http"
)

type (
	// Router is the platform router surface modules mount against
	Router = phttp.Router

	// Response is the functional response type for return-style handlers
	Response = phttp.Response

	// Envelope is the standard response body
	Envelope = phttp.Envelope
)

// JSON adapts a JSON-body handler into a platform handler
func JSON[T any](h func(*http.Request, T) (any, error)) phttp.Handler {
	return phttp.JSONHandler(h)
}

// Call adapts a body-less handler into a platform handler
func Call(h func(*http.Request) (any, error)) phttp.Handler {
	return phttp.JSONHandlerNoBody(h)
}

// Get registers a no-body handler under GET
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, Call(h))
}

// Post registers a no-body handler under POST
func Post(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, Call(h))
}

// PostJSON mounts a pure JSON handler under POST
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, JSON(h))
}

// Delete registers a no-body handler under DELETE
func Delete(r Router, path string, h func(*http.Request) (any, error)) {
	r.Delete(path, Call(h))
}
