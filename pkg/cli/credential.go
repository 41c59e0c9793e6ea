package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/adsctl/adsctl/pkg/storage"
)

const maxCredentialSize = 1 << 20 // 1MB limit for all credential inputs

// isOnlyWhitespace checks if a byte slice contains only Unicode whitespace
// characters without allocating strings. Returns true if empty or
// whitespace-only.
func isOnlyWhitespace(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8 is treated as non-whitespace
			return false
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += size
	}
	return true
}

// NewCredentialCommand creates the credential management command
func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage stored credentials",
		Long: `Manage API credentials and the approver identity in the system keyring.
Credentials are stored in your system's native credential store (Keychain on
macOS, Credential Manager on Windows, Secret Service on Linux) and never in
plain text files.`,
	}

	cmd.AddCommand(newCredentialSetAdsCommand())
	cmd.AddCommand(newCredentialSetApproverCommand())
	cmd.AddCommand(newCredentialShowApproverCommand())
	cmd.AddCommand(newCredentialListCommand())
	cmd.AddCommand(newCredentialDeleteCommand())

	return cmd
}

// newCredentialSetAdsCommand creates the set-ads subcommand
func newCredentialSetAdsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-ads",
		Short: "Store Google Ads API credentials",
		Long: `Store the Google Ads API credential bundle in the system keyring.

The credential JSON is read from stdin to keep secrets out of shell history
and process lists:

  {
    "developer_token": "...",
    "client_id": "...",
    "client_secret": "...",
    "refresh_token": "...",
    "login_customer_id": "1234567890"
  }

Examples:
  adsctl credential set-ads < ads-credentials.json
  op read "op://ads/adsctl/credential" | adsctl credential set-ads

Note:
  - Input is limited to 1MB and must be valid JSON
  - The input buffer is zeroed after reading (best-effort; Go strings are immutable)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limitedReader := io.LimitReader(cmd.InOrStdin(), maxCredentialSize+1)
			inputBytes, err := io.ReadAll(limitedReader)

			// Ensure buffer is zeroed on all exit paths
			defer func() {
				for i := range inputBytes {
					inputBytes[i] = 0
				}
			}()

			if err != nil {
				return fmt.Errorf("failed to read from stdin: %w", err)
			}
			if len(inputBytes) > maxCredentialSize {
				return fmt.Errorf("credential input exceeds maximum size of %d bytes", maxCredentialSize)
			}

			trimmed := bytes.TrimRight(inputBytes, "\r\n")
			if isOnlyWhitespace(trimmed) {
				return fmt.Errorf("credential input cannot be empty")
			}

			var creds storage.AdsAPICredentials
			if err := json.Unmarshal(trimmed, &creds); err != nil {
				return fmt.Errorf("invalid credential JSON: %w", err)
			}
			if creds.DeveloperToken == "" || creds.RefreshToken == "" {
				return fmt.Errorf("credential JSON must include developer_token and refresh_token")
			}

			if err := storage.NewKeyringCredentialStore().SetStructured(storage.KeyAdsAPI, creds); err != nil {
				return fmt.Errorf("failed to store credentials: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Google Ads API credentials stored")
			return nil
		},
	}

	return cmd
}

// newCredentialSetApproverCommand creates the set-approver subcommand
func newCredentialSetApproverCommand() *cobra.Command {
	var identity storage.ApproverIdentity

	cmd := &cobra.Command{
		Use:   "set-approver",
		Short: "Store the approver identity",
		Long: `Store the identity stamped onto plan and operation approvals.

Examples:
  adsctl credential set-approver --email reviewer@example.com
  adsctl credential set-approver --email reviewer@example.com --name "A. Reviewer"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity.Email == "" {
				return fmt.Errorf("an approver email is required (use --email)")
			}
			if err := storage.NewKeyringCredentialStore().SetApprover(identity); err != nil {
				return fmt.Errorf("failed to store approver identity: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Approver identity stored: %s\n", identity.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&identity.Email, "email", "", "Approver email (required)")
	cmd.Flags().StringVar(&identity.Name, "name", "", "Approver display name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// newCredentialShowApproverCommand creates the show-approver subcommand
func newCredentialShowApproverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show-approver",
		Short: "Show the stored approver identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := storage.NewKeyringCredentialStore().Approver()
			if err != nil {
				return fmt.Errorf("no approver identity stored\nSet one with: adsctl credential set-approver --email <email>")
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Email: %s\n", identity.Email)
			if identity.Name != "" {
				_, _ = fmt.Fprintf(out, "Name:  %s\n", identity.Name)
			}
			return nil
		},
	}
}

// newCredentialListCommand creates the credential list subcommand
func newCredentialListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credential keys",
		Long: `List the keys of all stored credentials. Only key names are shown,
never the actual values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := storage.NewKeyringCredentialStore().List()
			if err != nil {
				return fmt.Errorf("failed to list credentials: %w", err)
			}

			if len(keys) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No credentials stored.")
				return nil
			}

			sort.Strings(keys)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Stored credentials:")
			for _, k := range keys {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  - %s (set)\n", k)
			}
			return nil
		},
	}
}

// newCredentialDeleteCommand creates the credential delete subcommand
func newCredentialDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.NewKeyringCredentialStore().Delete(args[0]); err != nil {
				return fmt.Errorf("failed to delete credential: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential %q deleted\n", args[0])
			return nil
		},
	}
}
