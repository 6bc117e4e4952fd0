package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-cvm-attestation/client"
	"github.com/google/go-cvm-attestation/imds"
	"github.com/google/go-cvm-attestation/internal/osinfo"
	"github.com/google/go-cvm-attestation/tpm"
	"github.com/spf13/cobra"
)

var (
	guest    bool
	eventLog string
)

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Attest the confidential VM and print the attestation token",
	Long: `Collect attestation evidence and exchange it for a token.

By default the platform is attested: the hardware report of the HCL report is
sent to the attestation service (as a TD quote on TDX, or together with the
VCEK certificate chain on SEV-SNP) and the returned token is printed.

--guest attests the guest instead. The vTPM quote, PCR values, measurement log
and OS description are sent as well, and the service encrypts the token to a
vTPM key bound to the current PCR values, which is then used to decrypt it.

The provider, endpoint, API key and claims are read from --config, a JSON file
in the form
  {"attestation_provider": "maa_snp", "attestation_url": "https://...",
   "api_key": "", "claims": {"nonce": "..."}}
and can be overridden by flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := loadParams()
		if err != nil {
			return err
		}
		t, err := openTpm()
		if err != nil {
			return err
		}
		defer t.Close()

		c, err := newClient(params, t)
		if err != nil {
			return err
		}

		var token string
		if guest {
			fmt.Fprintln(debugOutput(), "Attesting guest")
			token, err = c.AttestGuest(cmd.Context())
		} else {
			fmt.Fprintln(debugOutput(), "Attesting platform")
			token, err = c.AttestPlatform(cmd.Context())
		}
		if err != nil {
			return err
		}

		printClaims(token)
		if output == "" {
			fmt.Fprintln(messageOutput(), token)
			return nil
		}
		if err := writeOutput([]byte(token)); err != nil {
			return fmt.Errorf("failed to write the token: %v", err)
		}
		return nil
	},
}

func newClient(params client.Params, t *tpm.TPM) (*client.Client, error) {
	collector := &osinfo.Collector{EventLogPath: eventLog, Logger: log}
	deps := client.Deps{
		TPM:    t,
		OS:     collector,
		Log:    collector,
		Logger: log,
	}
	if imdsURL != "" {
		deps.Metadata = imds.NewClient(imdsURL, nil)
	}
	return client.New(params, deps)
}

// printClaims prints the unverified payload of JWT shaped tokens.
func printClaims(token string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		fmt.Fprintf(debugOutput(), "Token is not a JWT: %v\n", err)
		return
	}
	claimsString, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(debugOutput(), "Token claims:\n%s\n", claimsString)
}

func init() {
	RootCmd.AddCommand(attestCmd)
	addConfigFlags(attestCmd)
	addOutputFlag(attestCmd)
	attestCmd.PersistentFlags().BoolVar(&guest, "guest", false,
		"attest the guest with vTPM evidence instead of the platform")
	attestCmd.PersistentFlags().StringVar(&eventLog, "event-log", osinfo.DefaultEventLogPath,
		"path to the TCG event log (Linux only)")
}
