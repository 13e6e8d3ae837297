package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/plantdoc/internal/session"
	"github.com/vbonduro/plantdoc/internal/web"
)

var (
	serveAddr     string
	serveInsecure bool
	serveOrigins  []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnosis API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		registry, err := session.NewRegistry(a.cfg.SessionCacheSize, a.logger)
		if err != nil {
			return err
		}

		addr := a.cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		server := web.NewServer(a.service, registry, a.logger, web.Options{
			SecureCookies:  !serveInsecure,
			OriginPatterns: serveOrigins,
		})
		if err := server.ListenAndServe(ctx, addr); err != nil {
			a.logger.Error("server error", "error", err)
			return err
		}
		a.logger.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides LISTEN_ADDR)")
	serveCmd.Flags().BoolVar(&serveInsecure, "insecure-cookies", false, "send the client cookie over plain HTTP")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allow-origin", nil, "extra origin host allowed to open /api/watch")
}
