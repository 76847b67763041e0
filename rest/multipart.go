package rest

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/textproto"
)

// MultipartBody is a multipart/form-data request body with optional file
// uploads.
type MultipartBody struct {
	// Fields are simple form fields, flattened like Args.
	Fields Args
	// Files are file upload parts.
	Files []FileField
}

// FileField is one file part of a multipart body.
type FileField struct {
	// FieldName is the form field name (e.g., "file", "avatar").
	FieldName string
	// FileName is the file name sent to the server.
	FileName string
	// ContentType is the MIME type. Defaults to application/octet-stream.
	ContentType string
	// Data is the file content. Used if Reader is nil.
	Data []byte
	// Reader streams the file content.
	Reader io.Reader
}

// encode builds the multipart body and returns the reader and content-type header.
func (m *MultipartBody) encode() (io.Reader, string, error) {
	return encodeMultipart(m.Fields.pairs(), m.Files)
}

func encodeMultipart(fields []pair, files []FileField) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}

	for _, f := range files {
		var part io.Writer
		var err error

		if f.ContentType != "" {
			header := make(textproto.MIMEHeader)
			header.Set("Content-Disposition",
				`form-data; name="`+escapeQuotes(f.FieldName)+`"; filename="`+escapeQuotes(f.FileName)+`"`)
			header.Set("Content-Type", f.ContentType)
			part, err = w.CreatePart(header)
		} else {
			part, err = w.CreateFormFile(f.FieldName, f.FileName)
		}
		if err != nil {
			return nil, "", err
		}

		switch {
		case f.Data != nil:
			_, err = part.Write(f.Data)
		case f.Reader != nil:
			_, err = io.Copy(part, f.Reader)
		}
		if err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// escapeQuotes backslash-escapes quotes and backslashes in header values.
func escapeQuotes(s string) string {
	var buf bytes.Buffer
	for _, b := range []byte(s) {
		if b == '"' || b == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(b)
	}
	return buf.String()
}
