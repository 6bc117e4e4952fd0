// Package cmd contains a CLI to attest Azure confidential VMs.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/google/logger"
	"github.com/spf13/cobra"
)

// RootCmd is the entrypoint for cvmattest.
var RootCmd = &cobra.Command{
	Use: "cvmattest",
	Long: `Command line tool for Azure confidential VM attestation

This tool collects the HCL report and vTPM evidence of an SEV-SNP or TDX
confidential VM, submits it to Microsoft Azure Attestation or Intel Trust
Authority, and prints the resulting token.
See the per-command documentation for more information.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet && verbose {
			fmt.Fprintln(os.Stderr, "Cannot specify both --quiet and --verbose")
			cmd.Usage()
			os.Exit(1)
		}
		cmd.SilenceUsage = true
		initLogger()
	},
}

var (
	quiet   bool
	verbose bool

	log *logger.Logger
)

func init() {
	RootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false,
		"print nothing if command is successful")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false,
		"print additional info to stdout")
	hideHelp(RootCmd)
}

// initLogger sets up the command logger. Info goes to stdout with --verbose;
// errors always reach stderr.
func initLogger() {
	log = logger.Init("cvmattest", verbose, false, io.Discard)
	if verbose {
		log.SetLevel(1)
	}
}

// Default Writer to use for debug output
func debugOutput() io.Writer {
	if verbose {
		return os.Stdout
	}
	return io.Discard
}

// Default Writer to use for messages
func messageOutput() io.Writer {
	if quiet {
		return io.Discard
	}
	return os.Stdout
}
