package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tweetsaver/internal/version"
)

var (
	cfgFile  string
	dbPath   string
	verbose  bool
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tweetsaver",
	Short: "tweetsaver - search tweets and keep the ones you like",
	Long: `tweetsaver searches tweets and keeps a saved set that survives restarts.

It serves a drag-and-drop web page, a terminal UI (locally or over SSH) and a
few CLI commands, all backed by the same saved set.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionJSON bool

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		buildInfo := version.GetBuildInfo()

		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(buildInfo)
		}

		fmt.Fprintf(out, "tweetsaver %s\n", version.Full())
		if buildInfo.GitCommit != "unknown" {
			fmt.Fprintf(out, "Git commit: %s\n", buildInfo.GitCommit)
		}
		if buildInfo.GitTag != "" {
			fmt.Fprintf(out, "Git tag: %s\n", buildInfo.GitTag)
		}
		if buildInfo.GitDirty {
			fmt.Fprintf(out, "Git status: dirty (uncommitted changes)\n")
		}
		if buildInfo.BuildDate != "unknown" {
			fmt.Fprintf(out, "Build date: %s\n", buildInfo.BuildDate)
		}
		fmt.Fprintf(out, "Go version: %s\n", buildInfo.GoVersion)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: <data dir>/config/config.json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "database", "", "saved tweet database path (default: from config or data dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error, off")

	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build information as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(sshCmd)
	rootCmd.AddCommand(sshKeysCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(savedCmd)
	rootCmd.AddCommand(backupCmd)

	// If no command is specified, default to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
