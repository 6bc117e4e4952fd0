package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	output     string
	input      string
	configFile string
	endpoint   string
	apiKey     string
	provider   string
	imdsURL    string
	pcrs       []int
)

const numPCRs = 24

type pcrsFlag struct {
	value *[]int
}

func (f *pcrsFlag) Set(val string) error {
	for _, d := range strings.Split(val, ",") {
		pcr, err := strconv.Atoi(d)
		if err != nil {
			return err
		}
		if pcr < 0 || pcr >= numPCRs {
			return errors.New("pcr out of range")
		}
		*f.value = append(*f.value, pcr)
	}
	return nil
}

func (f *pcrsFlag) Type() string {
	return "pcrs"
}

func (f *pcrsFlag) String() string {
	if len(*f.value) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d", (*f.value)[0])
	for _, pcr := range (*f.value)[1:] {
		fmt.Fprintf(&b, ",%d", pcr)
	}
	return b.String()
}

// Disable the "help" subcommand (and just use the -h/--help flags).
// This should be called on all commands with subcommands.
// See https://github.com/spf13/cobra/issues/587 for why this is needed.
func hideHelp(cmd *cobra.Command) {
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
}

// Lets this command specify an output file, for use with dataOutput().
func addOutputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&output, "output", "",
		"output file (defaults to stdout)")
}

// Lets this command specify an input file, for use with dataInput().
func addInputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&input, "input", "",
		"input file (defaults to stdin)")
}

// Lets this command read a JSON config file and override its fields.
func addConfigFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"JSON config file with attestation_provider, attestation_url, api_key and claims")
	cmd.PersistentFlags().StringVar(&provider, "provider", "",
		"attestation provider: "+providerNames()+" (overrides the config file)")
	cmd.PersistentFlags().StringVar(&endpoint, "endpoint", "",
		"attestation service URL (overrides the config file)")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", "",
		"Intel Trust Authority API key (overrides the config file)")
	cmd.PersistentFlags().StringVar(&imdsURL, "imds-url", "",
		"Azure instance metadata service URL")
	cmd.PersistentFlags().MarkHidden("imds-url")
}

// Lets this command specify some number of PCR arguments, check if in range.
func addPCRsFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Var(&pcrsFlag{&pcrs}, "pcrs", "comma separated list of PCR numbers")
}

// alwaysError implements io.ReadWriter by always returning an error
type alwaysError struct {
	error
}

func (ae alwaysError) Write([]byte) (int, error) {
	return 0, ae.error
}

func (ae alwaysError) Read(_ []byte) (n int, err error) {
	return 0, ae.error
}

func (ae alwaysError) Close() error {
	return ae.error
}

type stdout struct{ io.Writer }

func (stdout) Close() error { return nil }

// Handle to output data file. If there is an issue opening the file, the Writer
// returned will return the error upon any call to Write(). Closing the handle
// for stdout is a no-op.
func dataOutput() io.WriteCloser {
	if output == "" {
		return stdout{os.Stdout}
	}

	file, err := os.Create(output)
	if err != nil {
		return alwaysError{err}
	}
	return file
}

// writeOutput writes data to the output file and closes it.
func writeOutput(data []byte) error {
	out := dataOutput()
	if _, err := out.Write(data); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Handle to input data file. If there is an issue opening the file, the Reader
// returned will return the error upon any call to Read()
func dataInput() io.Reader {
	if input == "" {
		return os.Stdin
	}

	file, err := os.Open(input)
	if err != nil {
		return alwaysError{err}
	}
	return file
}
