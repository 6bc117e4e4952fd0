package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-cvm-attestation/envelope"
	"github.com/google/go-cvm-attestation/internal/osinfo"
	"github.com/spf13/cobra"
)

var innerKey []byte

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt an encrypted guest attestation response",
	Long: `Decrypt the response of a guest attestation and print the token.

The base64url encoded response is read from --input. With --key, the hex
encoded inner AES key is used directly, which allows debugging attestation
services offline. Otherwise the sealed inner key is decrypted by the vTPM
ephemeral key bound to --pcrs (defaults to the PCRs of this OS), which only
succeeds on the VM that requested the token and while its PCRs are unchanged.`,
	Args: cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		raw, err := io.ReadAll(dataInput())
		if err != nil {
			return err
		}
		response := strings.TrimSpace(string(raw))

		var token string
		if len(innerKey) != 0 {
			resp, err := envelope.Decode(response)
			if err != nil {
				return err
			}
			token, err = resp.Decrypt(innerKey)
			if err != nil {
				return err
			}
		} else {
			token, err = unsealResponse(response)
			if err != nil {
				return err
			}
		}

		if err := writeOutput([]byte(token)); err != nil {
			return fmt.Errorf("failed to write the token: %v", err)
		}
		return nil
	},
}

func unsealResponse(response string) (string, error) {
	sel := pcrs
	if len(sel) == 0 {
		info, err := (&osinfo.Collector{Logger: log}).OSInfo()
		if err != nil {
			return "", err
		}
		sel = info.PCRs
	}
	if len(sel) == 0 {
		return "", errors.New("no PCRs to unseal with, set --pcrs")
	}
	fmt.Fprintf(debugOutput(), "Unsealing inner key with PCRs %v\n", sel)

	t, err := openTpm()
	if err != nil {
		return "", err
	}
	defer t.Close()
	return envelope.Open(response, sel, t.DecryptWithEphemeralKey)
}

func init() {
	RootCmd.AddCommand(decryptCmd)
	addInputFlag(decryptCmd)
	addOutputFlag(decryptCmd)
	addPCRsFlag(decryptCmd)
	decryptCmd.PersistentFlags().BytesHexVar(&innerKey, "key", nil,
		"hex encoded inner AES key, skips the vTPM")
}
