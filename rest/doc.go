// Package rest is a small client for JSON and form based REST APIs.
//
// A Client is bound to one host. Paths are appended to it, arguments are
// encoded into the query string (GET, DELETE) or the body (POST, PUT), and
// the response body is returned decoded: JSON when the Content-Type
// mentions json, text otherwise.
//
//	c, err := rest.New(rest.Config{Host: "api.example.com"})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	user, err := c.Get(ctx, "users/42", rest.Args{"fields": "name"})
//	switch {
//	case response.IsNotFound(err):
//		// 404
//	case response.IsRuntime(err):
//		// 403, 500 or transport failure
//	}
//
// Status codes 400, 401, 403, 404 and 500 become *response.Error values;
// other codes are returned as successful responses.
//
// Cookies received are kept in a file (temp/cookies.txt by default) in the
// Netscape format and sent again by later clients using the same file.
// With Config.Debug every exchange is written to curl_<name>.log.
package rest
