package rest

import (
	"context"
	"net/http"

	"github.com/kbukum/gorest/rest/response"
)

// Result is a response whose JSON body was decoded into T.
type Result[T any] struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Data is the decoded response body.
	Data T
}

// GetAs performs a GET request and decodes the JSON response into type T.
func GetAs[T any](ctx context.Context, c *Client, path string, args Args) (*Result[T], error) {
	return doAs[T](ctx, c, Request{Method: http.MethodGet, Path: path, Args: args})
}

// PostAs performs a POST request and decodes the JSON response into type T.
func PostAs[T any](ctx context.Context, c *Client, path string, body any) (*Result[T], error) {
	return doAs[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body})
}

// PutAs performs a PUT request and decodes the JSON response into type T.
func PutAs[T any](ctx context.Context, c *Client, path string, body any) (*Result[T], error) {
	return doAs[T](ctx, c, Request{Method: http.MethodPut, Path: path, Body: body})
}

// DeleteAs performs a DELETE request and decodes the JSON response into type T.
func DeleteAs[T any](ctx context.Context, c *Client, path string, args Args) (*Result[T], error) {
	return doAs[T](ctx, c, Request{Method: http.MethodDelete, Path: path, Args: args})
}

// doAs executes req and decodes the body. When the status maps to an error
// and the body still decodes, the result is returned with the error.
func doAs[T any](ctx context.Context, c *Client, req Request) (*Result[T], error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		if resp != nil {
			var data T
			if resp.Decode(&data) == nil {
				return &Result[T]{StatusCode: resp.StatusCode, Header: resp.Header, Data: data}, err
			}
		}
		return nil, err
	}
	return decodeResult[T](resp)
}

func decodeResult[T any](resp *response.Response) (*Result[T], error) {
	var data T
	if err := resp.Decode(&data); err != nil {
		return nil, err
	}
	return &Result[T]{StatusCode: resp.StatusCode, Header: resp.Header, Data: data}, nil
}
