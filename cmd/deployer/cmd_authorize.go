package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-deployer/core"
	"github.com/goliatone/go-deployer/inbound"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Connect a Netlify account through the browser",
	Long: `
Starts a local callback server and prints the url that begins the Netlify
OAuth flow. The command exits once the callback stored a token.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		watcher := newAuthorizationWatcher(rt.Deployer)
		handler, err := inbound.NewHandler(watcher, inbound.Config{
			RedirectURI: callbackURL(rt.Config.OAuth.RedirectURL, Listen),
			Logger:      rt.Logger,
		})
		if err != nil {
			return err
		}

		server := &http.Server{Addr: Listen, Handler: handler.Routes(), ReadHeaderTimeout: 10 * time.Second}
		serveErr := make(chan error, 1)
		go func() { serveErr <- server.ListenAndServe() }()
		defer shutdown(server)

		fmt.Fprintf(cmd.OutOrStdout(), "Open http://%s/oauth/authorize in your browser to connect Netlify.\n", Listen)
		select {
		case result := <-watcher.done:
			fmt.Fprintf(cmd.OutOrStdout(), "authorization %s\n", result.State)
			return nil
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("deployer: callback server: %w", err)
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
	},
}

func init() {
	rootCmd.AddCommand(authorizeCmd)
}

// authorizationWatcher signals once a callback completes successfully.
type authorizationWatcher struct {
	inbound.Service
	done chan core.AuthorizationResult
}

func newAuthorizationWatcher(service inbound.Service) *authorizationWatcher {
	return &authorizationWatcher{Service: service, done: make(chan core.AuthorizationResult, 1)}
}

func (w *authorizationWatcher) CompleteAuthorization(ctx context.Context, req core.CompleteAuthorizationRequest) (core.AuthorizationResult, error) {
	result, err := w.Service.CompleteAuthorization(ctx, req)
	if err == nil {
		select {
		case w.done <- result:
		default:
		}
	}
	return result, err
}

// callbackURL prefers the configured redirect url and falls back to the
// local listener.
func callbackURL(configured string, listen string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	return "http://" + listen + "/oauth/callback"
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = server.Shutdown(ctx)
}
