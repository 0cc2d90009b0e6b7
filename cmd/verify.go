package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

var signatureFlag string
var keyringFlag string

const verifyLongDescription = `Verify a packaged artifact against its checksum sidecar.

Recomputes the SHA-256 of the archive and compares it to the recorded value
in <archive>.sha256. With --signature and --keyring the armored detached
signature is checked against the keyring as well.`

// verifyCmd represents the verify command.
var verifyCmd = newVerifyCmd()

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Verify an artifact checksum and signature",
		Long:  verifyLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive := m.Path(args[0])

			if err := verifyChecksum(archive); err != nil {
				return err
			}

			cmd.Printf("checksum ok\t%s\n", archive)

			if signatureFlag == "" {
				return nil
			}

			if keyringFlag == "" {
				return fmt.Errorf("--%s requires --%s", signatureFlagName, keyringFlagName)
			}

			if err := sigVerifier.VerifyDetached(archive, m.Path(signatureFlag), m.Path(keyringFlag)); err != nil {
				return err
			}

			cmd.Printf("signature ok\t%s\n", signatureFlag)

			return nil
		},
	}

	cmd.Flags().StringVarP(&signatureFlag, signatureFlagName, "s", "", "armored detached signature to check")
	cmd.Flags().StringVarP(&keyringFlag, keyringFlagName, "k", "", "armored keyring holding the signing key")

	return cmd
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// verifyChecksum recomputes the archive hash and compares it to the sidecar
// written at packaging time. The sidecar format is "<hex>  <filename>".
func verifyChecksum(archive m.Path) error {
	sidecar := archive + ".sha256"

	recorded, err := fsAdapter.ReadFile(sidecar)
	if err != nil {
		return fmt.Errorf("read checksum sidecar: %w", err)
	}

	fields := strings.Fields(string(recorded))
	if len(fields) == 0 {
		return fmt.Errorf("checksum sidecar %s is empty", sidecar)
	}

	actual, err := archiveWriter.ChecksumFile(archive)
	if err != nil {
		return err
	}

	if actual != fields[0] {
		return fmt.Errorf("checksum mismatch for %s: recorded %s, actual %s", archive, fields[0], actual)
	}

	return nil
}
