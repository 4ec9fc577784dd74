package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	charmssh "github.com/charmbracelet/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	internalssh "tweetsaver/internal/ssh"
	"tweetsaver/internal/tui"
)

var (
	sshListen         string
	sshHostKey        string
	sshAuthorizedKeys string
)

var sshCmd = &cobra.Command{
	Use:   "ssh-server",
	Short: "Start a standalone SSH server for TUI access",
	Long: `Start a standalone SSH server that serves the tweetsaver TUI over SSH.
Every connection gets its own widget over the shared saved set.

  ssh -p 2222 user@localhost`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sshCfg := internalssh.SSHConfig{
			ListenAddr:         a.cfg.SSH.ListenAddr,
			HostKeyPath:        a.cfg.SSH.HostKeyPath,
			AuthorizedKeysPath: a.cfg.SSH.AuthorizedKeysPath,
			NewController: func(ctx context.Context, _ string) (tui.Controller, error) {
				return a.newController(ctx)
			},
			FollowInterval: a.followInterval(),
		}
		if sshListen != "" {
			sshCfg.ListenAddr = sshListen
		}
		if sshHostKey != "" {
			sshCfg.HostKeyPath = sshHostKey
		}
		if sshAuthorizedKeys != "" {
			sshCfg.AuthorizedKeysPath = sshAuthorizedKeys
		}

		server, err := internalssh.NewServer(sshCfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			log.Info().Str("component", "ssh").Msg("shutting down SSH server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		log.Info().Str("component", "ssh").Str("addr", server.Addr).Msg("SSH server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, charmssh.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	sshCmd.Flags().StringVar(&sshListen, "listen", "", "SSH listen address (default: ssh.listen_addr)")
	sshCmd.Flags().StringVar(&sshHostKey, "host-key", "", "Path to SSH host key (auto-generated if missing)")
	sshCmd.Flags().StringVar(&sshAuthorizedKeys, "authorized-keys", "", "Path to authorized_keys file")
}
