// Command restclient sends requests to a REST API from the command line.
//
//	restclient --host api.example.com get users/42
//	restclient --host api.example.com -H "X-Api-Key: k" post users name=Bob
//	restclient --host api.example.com -q data.0.id get users
package main

import (
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
)

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		os.Exit(1)
	}
}
