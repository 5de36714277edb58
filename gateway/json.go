package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Send issues req and decodes the JSON reply into R.
func Send[R any](ctx context.Context, g *Gateway, req Request) (R, error) {
	var result R
	resp, err := g.Do(ctx, req)
	if err != nil {
		return result, err
	}
	err = resp.Decode(&result)
	return result, err
}

// Get issues a GET for path with query and decodes the reply into R.
func Get[R any](ctx context.Context, g *Gateway, path string, query url.Values) (R, error) {
	return Send[R](ctx, g, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends args as a JSON POST to path and decodes the reply into R.
func Post[R any](ctx context.Context, g *Gateway, path string, args any) (R, error) {
	return Send[R](ctx, g, Request{Method: http.MethodPost, Path: path, Body: args})
}
