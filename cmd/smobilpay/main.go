package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:           "smobilpay",
		Short:         "Collect MTN Mobile Money and Orange Money payments through Smobilpay",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "env files to load (default .env)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log Smobilpay responses")

	rootCmd.AddCommand(serveCmd(&opts))
	rootCmd.AddCommand(verifyCmd(&opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
