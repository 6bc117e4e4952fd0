package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-cvm-attestation/hcl"
	"github.com/google/go-cvm-attestation/imds"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

var fromTPM bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [hcl-report-file]",
	Short: "Print the contents of an HCL report",
	Long: `Print the report type, runtime data and hardware report of an HCL report.

The report is read from the given file, from --input, or, with --from-tpm,
fetched from the vTPM (which refreshes it with the configured claims). SEV-SNP
hardware reports are printed as text protobufs.

This command is UNSTABLE, and may change at any time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readHCLReport(args)
		if err != nil {
			return err
		}
		report, err := hcl.Extract(raw)
		if err != nil {
			return err
		}

		out := dataOutput()
		defer out.Close()
		fmt.Fprintf(out, "Report type: %s (%d)\n", report.Type, report.RawType)
		fmt.Fprintf(out, "Runtime data:\n%s\n", formatRuntimeData(report.RuntimeData))
		switch report.Type {
		case hcl.ReportTypeSNP:
			snp, err := report.SNPReport()
			if err != nil {
				return fmt.Errorf("decoding SNP report: %w", err)
			}
			fmt.Fprintln(out, "SNP report:")
			return outputProto(out, snp)
		default:
			fmt.Fprintf(out, "Hardware report: %d bytes\n", len(report.HardwareReport))
			return nil
		}
	},
}

var inspectQuoteCmd = &cobra.Command{
	Use:   "quote [quote-file]",
	Short: "Print a base64url encoded TD quote",
	Long: `Print a TD quote, as returned by the instance metadata service, as a text
protobuf. The quote is read from the given file or from --input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readArgOrInput(args)
		if err != nil {
			return err
		}
		quote, err := imds.ParseTDQuote(strings.TrimSpace(string(raw)))
		if err != nil {
			return fmt.Errorf("decoding TD quote: %w", err)
		}
		out := dataOutput()
		defer out.Close()
		return outputProto(out, quote)
	},
}

func readArgOrInput(args []string) ([]byte, error) {
	if len(args) == 1 {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(dataInput())
}

func readHCLReport(args []string) ([]byte, error) {
	if !fromTPM {
		return readArgOrInput(args)
	}
	if len(args) != 0 {
		return nil, fmt.Errorf("--from-tpm takes no report file")
	}
	params, err := loadParams()
	if err != nil {
		return nil, err
	}
	t, err := openTpm()
	if err != nil {
		return nil, err
	}
	defer t.Close()
	return t.HCLReport(params.Claims)
}

func formatRuntimeData(data []byte) string {
	var b bytes.Buffer
	if err := json.Indent(&b, data, "", "  "); err != nil {
		return fmt.Sprintf("%q", data)
	}
	return b.String()
}

func outputProto(out io.Writer, m proto.Message) error {
	b, err := prototext.MarshalOptions{Multiline: true, EmitASCII: true}.Marshal(m)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

func init() {
	RootCmd.AddCommand(inspectCmd)
	inspectCmd.AddCommand(inspectQuoteCmd)
	hideHelp(inspectCmd)
	addInputFlag(inspectCmd)
	addOutputFlag(inspectCmd)
	addConfigFlags(inspectCmd)
	inspectCmd.Flags().BoolVar(&fromTPM, "from-tpm", false,
		"read the HCL report from the vTPM")
}
