// Package ssh serves the terminal widget over SSH.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	charmssh "github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	wishbubbletea "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/rs/zerolog/log"

	"tweetsaver/internal/tui"
)

// ControllerFactory builds the widget controller for one SSH user.
type ControllerFactory func(ctx context.Context, user string) (tui.Controller, error)

// SSHConfig holds configuration for the SSH server
type SSHConfig struct {
	ListenAddr         string
	HostKeyPath        string
	AuthorizedKeysPath string
	NewController      ControllerFactory
	FollowInterval     time.Duration
}

// NewServer creates a Wish SSH server that serves the TUI
func NewServer(config SSHConfig) (*charmssh.Server, error) {
	if config.NewController == nil {
		return nil, errors.New("ssh: controller factory is required")
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":2222"
	}
	if config.HostKeyPath == "" {
		p, err := DefaultHostKeyPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get SSH config dir: %w", err)
		}
		config.HostKeyPath = p
	}

	authorizedKeys, err := LoadAuthorizedKeys(config.AuthorizedKeysPath)
	if err != nil {
		log.Warn().Err(err).Str("component", "ssh").Msg("no authorized keys loaded")
		authorizedKeys = nil
	} else {
		log.Info().Str("component", "ssh").Int("keys", len(authorizedKeys)).Msg("loaded authorized keys")
	}

	handler := func(sess charmssh.Session) (tea.Model, []tea.ProgramOption) {
		return teaHandler(sess, config)
	}

	opts := []charmssh.Option{
		wish.WithAddress(config.ListenAddr),
		wish.WithHostKeyPath(config.HostKeyPath),
		wish.WithMiddleware(
			wishbubbletea.Middleware(handler),
			activeterm.Middleware(),
			logging.Middleware(),
		),
	}

	if len(authorizedKeys) > 0 {
		opts = append(opts, wish.WithPublicKeyAuth(func(ctx charmssh.Context, key charmssh.PublicKey) bool {
			return publicKeyHandler(ctx, key, authorizedKeys)
		}))
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH server: %w", err)
	}
	return server, nil
}

// teaHandler builds a widget and its TUI model for each SSH session.
func teaHandler(sess charmssh.Session, config SSHConfig) (tea.Model, []tea.ProgramOption) {
	user := sess.User()
	if user == "" {
		user = "ssh-user"
	}

	ctrl, err := config.NewController(sess.Context(), user)
	if err != nil {
		log.Error().Err(err).Str("component", "ssh").Str("user", user).Msg("failed to create widget")
		wish.Fatalln(sess, "tweetsaver: could not start a session")
		return nil, nil
	}

	// Styles must match the connecting terminal, not the server's.
	renderer := wishbubbletea.MakeRenderer(sess)

	model := tui.NewModel(tui.ModelConfig{
		Controller:     ctrl,
		Context:        sess.Context(),
		FollowInterval: config.FollowInterval,
		Renderer:       renderer,
	})
	model.SetSSHUser(user)

	return model, []tea.ProgramOption{tea.WithAltScreen()}
}

// publicKeyHandler validates SSH public keys against the authorized keys list
func publicKeyHandler(ctx charmssh.Context, key charmssh.PublicKey, authorizedKeys []charmssh.PublicKey) bool {
	for _, authKey := range authorizedKeys {
		if charmssh.KeysEqual(key, authKey) {
			log.Info().Str("component", "ssh").Str("user", ctx.User()).Msg("public key accepted")
			return true
		}
	}
	log.Warn().Str("component", "ssh").Str("user", ctx.User()).Msg("public key rejected")
	return false
}
