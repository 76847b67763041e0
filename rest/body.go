package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
)

// Form marks arguments to be sent URL-encoded instead of as multipart.
type Form Args

// JSONBody is a value sent as a JSON document.
type JSONBody struct {
	Value any
}

// JSON wraps v as a JSON request body. A string, otherwise sent raw, is
// then encoded as a JSON string.
func JSON(v any) JSONBody {
	return JSONBody{Value: v}
}

// encodeBody converts a body value into a reader and its default
// content type. A nil reader means no body.
func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(v), contentTypeForm, nil
	case []byte:
		return bytes.NewReader(v), contentTypeForm, nil
	case Form:
		return strings.NewReader(Args(v).Encode()), contentTypeForm, nil
	case url.Values:
		return strings.NewReader(v.Encode()), contentTypeForm, nil
	case Args:
		return encodeMultipart(v.pairs(), nil)
	case map[string]string:
		args := make(Args, len(v))
		for k, s := range v {
			args[k] = s
		}
		return encodeMultipart(args.pairs(), nil)
	case *MultipartBody:
		if v == nil {
			return nil, "", nil
		}
		return v.encode()
	case io.Reader:
		return v, "", nil
	case JSONBody:
		return encodeJSON(v.Value)
	default:
		return encodeJSON(v)
	}
}

func encodeJSON(v any) (io.Reader, string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("rest: encode json body: %w", err)
	}
	return bytes.NewReader(data), contentTypeJSON, nil
}
