// Command thinkgraph manages an audited, versioned thinking graph stored in
// SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/thinkgraph/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.ExitSuccess
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		code = cli.GetExitCode(err)
		// Commands report their own failures; errors raised by cobra itself
		// (bad flags, unknown commands, wrong arg count) land here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			code = cli.ExitCommandError
		}
	}
	stop()
	os.Exit(code)
}
