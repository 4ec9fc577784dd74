package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tweetsaver/internal/backup"
	internalssh "tweetsaver/internal/ssh"
)

var (
	backupOutput     string
	backupWithSSH    bool
	backupJSON       bool
	restoreForce     bool
	restoreDryRun    bool
	restoreSkipCfg   bool
	restoreSSHKeys   bool
	restoreConfigOut string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive and restore the saved set",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a .tar.gz of the saved set and config",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		opts := backup.Options{
			DatabasePath: a.store.Path(),
			OutputPath:   backupOutput,
		}
		if _, err := os.Stat(a.cfgPath); err == nil {
			opts.ConfigPath = a.cfgPath
		}
		if backupWithSSH {
			if opts.SSHHostKeyPath, err = sshKeyPath(a.cfg.SSH.HostKeyPath, internalssh.DefaultHostKeyPath); err != nil {
				return err
			}
			if opts.SSHAuthorizedKeysPath, err = sshKeyPath(a.cfg.SSH.AuthorizedKeysPath, internalssh.DefaultAuthorizedKeysPath); err != nil {
				return err
			}
		}

		res, err := backup.Create(cmd.Context(), opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if backupJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintf(out, "Backup written to %s\n", res.ArchivePath)
		fmt.Fprintf(out, "  components: %s\n", res.Components)
		fmt.Fprintf(out, "  saved tweets: %d\n", res.SavedCount)
		fmt.Fprintf(out, "  size: %d bytes in %s\n", res.TotalSize, res.Duration.Round(time.Millisecond))
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list <archive>",
	Short: "Show the manifest and files of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listing, err := backup.List(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if backupJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(listing)
		}

		m := listing.Manifest
		fmt.Fprintf(out, "Created %s by %s\n", m.Timestamp.Local().Format("2006-01-02 15:04:05"), m.AppVersion)
		fmt.Fprintf(out, "Components: %s\n", m.Components)
		fmt.Fprintf(out, "Saved tweets: %d\n\n", m.Database.SavedCount)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tSIZE\tMODE")
		for _, f := range listing.Files {
			fmt.Fprintf(w, "%s\t%d\t%s\n", f.Path, f.Size, f.Mode)
		}
		return w.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Restore the saved set from an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		dbFile := a.store.Path()
		// The store must be closed before its file is replaced.
		a.Close()

		res, err := backup.Restore(backup.RestoreOptions{
			ArchivePath:    args[0],
			DatabasePath:   dbFile,
			ConfigPath:     restoreConfigOut,
			SkipConfig:     restoreSkipCfg,
			RestoreSSHKeys: restoreSSHKeys,
			Force:          restoreForce,
			DryRun:         restoreDryRun,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		verb := "restored"
		if restoreDryRun {
			verb = "would restore"
		}
		for _, p := range res.Restored {
			fmt.Fprintf(out, "%s %s\n", verb, p)
		}
		for _, p := range res.Skipped {
			fmt.Fprintf(out, "skipped %s\n", p)
		}
		return nil
	},
}

func sshKeyPath(configured string, fallback func() (string, error)) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return fallback()
}

func init() {
	backupCreateCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Archive path (default tweetsaver-backup-<time>.tar.gz)")
	backupCreateCmd.Flags().BoolVar(&backupWithSSH, "ssh-keys", false, "Include the SSH host key and authorized_keys")
	backupCreateCmd.Flags().BoolVar(&backupJSON, "json", false, "Print the result as JSON")
	backupListCmd.Flags().BoolVar(&backupJSON, "json", false, "Print the listing as JSON")

	backupRestoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Overwrite existing files")
	backupRestoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Show what would be restored")
	backupRestoreCmd.Flags().BoolVar(&restoreSkipCfg, "skip-config", false, "Leave the config file alone")
	backupRestoreCmd.Flags().BoolVar(&restoreSSHKeys, "ssh-keys", false, "Also restore SSH keys")
	backupRestoreCmd.Flags().StringVar(&restoreConfigOut, "config-out", "", "Where to write the restored config (default: original location)")

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
}
