package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-deployer/inbound"
	"github.com/spf13/cobra"
)

var (
	SecureCookie bool
	SuccessURL   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the OAuth, status, sites and deploy endpoints over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		success := SuccessURL
		if success == "" {
			success = rt.Config.OAuth.SuccessURL
		}
		handler, err := inbound.NewHandler(rt.Deployer, inbound.Config{
			RedirectURI:  callbackURL(rt.Config.OAuth.RedirectURL, Listen),
			SuccessURL:   success,
			SecureCookie: SecureCookie,
			Logger:       rt.Logger,
		})
		if err != nil {
			return err
		}

		server := &http.Server{Addr: Listen, Handler: handler.Routes(), ReadHeaderTimeout: 10 * time.Second}
		serveErr := make(chan error, 1)
		go func() { serveErr <- server.ListenAndServe() }()
		rt.Logger.Info("deployer http server listening", "addr", Listen)

		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("deployer: http server: %w", err)
		case <-cmd.Context().Done():
			shutdown(server)
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&SecureCookie, "secure-cookie", false, "mark the session cookie secure")
	serveCmd.Flags().StringVar(&SuccessURL, "success-url", "", "redirect target after a completed authorization")
}
