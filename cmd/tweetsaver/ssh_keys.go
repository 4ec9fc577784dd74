package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	internalssh "tweetsaver/internal/ssh"
)

var sshKeysPath string

var sshKeysCmd = &cobra.Command{
	Use:   "ssh-keys",
	Short: "Manage SSH authorized keys",
	Long:  "Add, list, and remove SSH public keys for TUI SSH access.",
}

var sshKeysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List authorized SSH public keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		entries, err := internalssh.ListAuthorizedKeys(sshKeysPath)
		if err != nil {
			return fmt.Errorf("failed to list keys: %w", err)
		}

		if len(entries) == 0 {
			fmt.Fprintln(out, "No authorized keys found.")
			fmt.Fprintln(out, "Add one with: tweetsaver ssh-keys add <key-file-or-string>")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FINGERPRINT\tCOMMENT")
		for _, entry := range entries {
			comment := entry.Comment
			if comment == "" {
				comment = "(no comment)"
			}
			fmt.Fprintf(w, "%s\t%s\n", entry.Fingerprint, comment)
		}
		return w.Flush()
	},
}

var sshKeysAddCmd = &cobra.Command{
	Use:   "add <key-file-or-string>",
	Short: "Add an SSH public key",
	Long: `Add an SSH public key to the authorized keys list.
The argument can be a path to a public key file (e.g., ~/.ssh/id_ed25519.pub)
or the key string itself.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyData := args[0]
		if _, err := os.Stat(keyData); err == nil {
			data, err := os.ReadFile(keyData)
			if err != nil {
				return fmt.Errorf("failed to read key file: %w", err)
			}
			keyData = strings.TrimSpace(string(data))
		}

		fp, err := internalssh.AddAuthorizedKey(sshKeysPath, keyData)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", fp)
		return nil
	},
}

var sshKeysRemoveCmd = &cobra.Command{
	Use:   "remove <fingerprint>",
	Short: "Remove an SSH public key by fingerprint",
	Long: `Remove an SSH public key from the authorized keys list.
Use 'tweetsaver ssh-keys list' to find the fingerprint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internalssh.RemoveAuthorizedKey(sshKeysPath, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "SSH public key removed.")
		return nil
	},
}

var sshKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty authorized_keys file",
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := internalssh.InitKeys(sshKeysPath)
		if err != nil {
			return err
		}
		path := sshKeysPath
		if path == "" {
			path, _ = internalssh.DefaultAuthorizedKeysPath()
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Exists: %s\n", path)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "The host key is generated on first SSH server start.")
		return nil
	},
}

func init() {
	sshKeysCmd.PersistentFlags().StringVar(&sshKeysPath, "authorized-keys", "", "Path to authorized_keys file (default: <data dir>/ssh/authorized_keys)")

	sshKeysCmd.AddCommand(sshKeysListCmd)
	sshKeysCmd.AddCommand(sshKeysAddCmd)
	sshKeysCmd.AddCommand(sshKeysRemoveCmd)
	sshKeysCmd.AddCommand(sshKeysInitCmd)
}
