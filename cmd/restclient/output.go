package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"
	"github.com/tidwall/gjson"
)

// printer writes decoded response values.
type printer struct {
	w     io.Writer
	color bool
	query string
}

func newPrinter(w io.Writer, noColor bool, query string) *printer {
	return &printer{w: w, color: !noColor && isTerminal(w), query: query}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print writes v: text as is, anything else as indented JSON. With a
// query set, only the matching part of v is written.
func (p *printer) Print(v any) error {
	if p.query != "" {
		var err error
		if v, err = p.selectPath(v); err != nil {
			return err
		}
	}

	if s, ok := v.(string); ok {
		if s != "" && !strings.HasSuffix(s, "\n") {
			s += "\n"
		}
		_, err := io.WriteString(p.w, s)
		return err
	}

	var (
		out []byte
		err error
	)
	if p.color {
		out, err = prettyjson.Marshal(v)
	} else {
		out, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = fmt.Fprintln(p.w, string(out))
	return err
}

func (p *printer) selectPath(v any) (any, error) {
	var data []byte
	switch t := v.(type) {
	case string:
		data = []byte(t)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("format output: %w", err)
		}
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("query %q needs a JSON response", p.query)
	}
	res := gjson.GetBytes(data, p.query)
	if !res.Exists() {
		return nil, fmt.Errorf("query %q matched nothing", p.query)
	}
	if res.Type == gjson.String {
		return res.String(), nil
	}
	return res.Value(), nil
}
