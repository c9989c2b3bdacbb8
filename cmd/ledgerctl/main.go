// Command ledgerctl drives a ledgerd service from the terminal
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Caqil/harn-ledger/pkg/client"
	"github.com/Caqil/harn-ledger/pkg/logger"
	"github.com/Caqil/harn-ledger/pkg/render"
)

const (
	serverKey  = "server"
	formatKey  = "format"
	timeoutKey = "timeout"
	verboseKey = "verbose"
)

// env is shared by every subcommand
type env struct {
	client *client.Client
	format render.Format
}

func setup(c *cobra.Command) (*env, error) {
	flags := c.Flags()
	server, _ := flags.GetString(serverKey)
	formatName, _ := flags.GetString(formatKey)
	timeout, _ := flags.GetDuration(timeoutKey)
	verbose, _ := flags.GetBool(verboseKey)

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger.SetGlobalLogger(logger.New(&logger.Config{Level: level, Output: c.ErrOrStderr(), Pretty: true}))

	format, err := render.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	cl, err := client.New(server, client.WithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	return &env{client: cl, format: format}, nil
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.String(serverKey, "http://127.0.0.1:5000", "ledgerd base URL")
	flags.String(formatKey, string(render.FormatText), "output format: text, html, json")
	flags.Duration(timeoutKey, 30*time.Second, "per-request timeout")
	flags.BoolP(verboseKey, "v", false, "log requests")
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Submit, query and verify records on a ledgerd cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(root.PersistentFlags())
	root.AddCommand(
		submitCommand(),
		statusCommand(),
		viewChangeCommand(),
		faultCommand(),
		queryCommand(),
		verifyQueryCommand(),
		decryptCommand(),
		nodeInfoCommand(),
		signCommand(),
		multiSignCommand(),
		walkthroughCommand(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := rootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		format, ferr := render.ParseFormat(root.PersistentFlags().Lookup(formatKey).Value.String())
		if ferr != nil {
			format = render.FormatText
		}
		if rerr := render.Error(os.Stderr, format, err); rerr != nil {
			fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		}
		os.Exit(1)
	}
}
