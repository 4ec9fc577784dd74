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
	"golang.org/x/sync/errgroup"

	"tweetsaver/internal/server"
	internalssh "tweetsaver/internal/ssh"
	"tweetsaver/internal/tui"
)

var (
	servePort   int
	serveNoSSH  bool
	serveStatic string
)

// serveCmd runs the web front end and, when enabled, the SSH front end and
// the follow scheduler.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web (and SSH) front ends",
	Long: `Start the web front end. The SSH front end starts too when ssh.enabled is
set in the config, and followed widgets are refreshed on follow.schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cmd, a)
	},
}

func runServe(ctx context.Context, cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if serveStatic != "" {
		cfg.Server.StaticDir = serveStatic
	}

	follower, err := a.newFollower()
	if err != nil {
		return err
	}
	if follower != nil {
		if err := follower.Start(); err != nil {
			return err
		}
		defer follower.Stop()
	}

	srvCfg := server.Config{
		Port:          cfg.Server.Port,
		StaticDir:     cfg.Server.StaticDir,
		NewController: a.newController,
		Follower:      follower,
		Saved:         a.store,
		MaxSessions:   cfg.Server.MaxSessions,
	}
	if cfg.Server.RateLimit.Enabled {
		srvCfg.RateWindow = cfg.Server.RateLimit.Window()
		srvCfg.RateLimit = cfg.Server.RateLimit.MaxRequests
	}
	web, err := server.New(srvCfg)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return web.Run(ctx) })

	if cfg.SSH.Enabled && !serveNoSSH {
		sshSrv, err := internalssh.NewServer(internalssh.SSHConfig{
			ListenAddr:         cfg.SSH.ListenAddr,
			HostKeyPath:        cfg.SSH.HostKeyPath,
			AuthorizedKeysPath: cfg.SSH.AuthorizedKeysPath,
			NewController: func(ctx context.Context, _ string) (tui.Controller, error) {
				return a.newController(ctx)
			},
			FollowInterval: a.followInterval(),
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Info().Str("component", "ssh").Str("addr", sshSrv.Addr).Msg("SSH front end listening")
			if err := sshSrv.ListenAndServe(); err != nil && !errors.Is(err, charmssh.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return sshSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("tweetsaver stopped")
	return nil
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "web front end port (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveNoSSH, "no-ssh", false, "do not start the SSH front end")
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "serve static assets from this directory")
}
