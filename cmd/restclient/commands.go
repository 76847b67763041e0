package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/urfave/cli/v2"

	"github.com/kbukum/gorest/rest"
	"github.com/kbukum/gorest/rest/response"
)

type (
	argsMethod func(*rest.Client, context.Context, string, rest.Args) (any, error)
	bodyMethod func(*rest.Client, context.Context, string, any) (any, error)
)

// argsCommand builds get and delete.
func (r *runner) argsCommand(name, usage string, call argsMethod) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "PATH [key=value ...]",
		Action: func(c *cli.Context) error {
			path, words, err := pathAndWords(c)
			if err != nil {
				return err
			}
			args, err := parseArgs(words)
			if err != nil {
				return exitError(err)
			}
			client, err := r.newClient()
			if err != nil {
				return exitError(err)
			}
			defer client.Close()
			return r.result(call(client, c.Context, path, args))
		},
	}
}

// bodyCommand builds post and put. The body is, in order of preference,
// --json, --data, or the key=value pairs (multipart, or URL-encoded with
// --form).
func (r *runner) bodyCommand(name, usage string, call bodyMethod) *cli.Command {
	var (
		data     string
		jsonBody string
		form     bool
	)
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "PATH [key=value ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "raw request body, @FILE reads it from a file", Destination: &data},
			&cli.StringFlag{Name: "json", Usage: "JSON request body", Destination: &jsonBody},
			&cli.BoolFlag{Name: "form", Usage: "send key=value pairs URL-encoded instead of multipart", Destination: &form},
		},
		Action: func(c *cli.Context) error {
			path, words, err := pathAndWords(c)
			if err != nil {
				return err
			}
			body, err := requestBody(r, data, jsonBody, form, words)
			if err != nil {
				return exitError(err)
			}
			client, err := r.newClient()
			if err != nil {
				return exitError(err)
			}
			defer client.Close()
			return r.result(call(client, c.Context, path, body))
		},
	}
}

func requestBody(r *runner, data, jsonBody string, form bool, words []string) (any, error) {
	switch {
	case jsonBody != "":
		if len(words) > 0 {
			return nil, fmt.Errorf("--json cannot be combined with key=value pairs")
		}
		return rawJSON(jsonBody)
	case data != "":
		if len(words) > 0 {
			return nil, fmt.Errorf("--data cannot be combined with key=value pairs")
		}
		if len(data) > 1 && data[0] == '@' {
			return readInput(data[1:], r.stdin)
		}
		return data, nil
	}
	args, err := parseArgs(words)
	if err != nil || args == nil {
		return nil, err
	}
	if form {
		return rest.Form(args), nil
	}
	return args, nil
}

// rawJSON checks s and sends it unchanged as a JSON body.
func rawJSON(s string) (any, error) {
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("--json value is not valid JSON")
	}
	return rest.JSON(json.RawMessage(s)), nil
}

func (r *runner) parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "decode a saved raw HTTP response (curl -i output, - for stdin)",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return exitError(fmt.Errorf("parse needs exactly one FILE argument"))
			}
			raw, err := readInput(c.Args().First(), r.stdin)
			if err != nil {
				return exitError(err)
			}
			resp, err := response.ParseRaw(raw)
			if err != nil && resp == nil {
				return exitError(err)
			}
			if err != nil {
				return r.result(nil, err)
			}
			return r.result(resp.Value())
		},
	}
}

func pathAndWords(c *cli.Context) (string, []string, error) {
	if c.NArg() == 0 {
		return "", nil, exitError(fmt.Errorf("%s needs a PATH argument", c.Command.Name))
	}
	return c.Args().First(), c.Args().Tail(), nil
}
