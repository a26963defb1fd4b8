package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xtpatterns/internal/server"
	"github.com/danielpatrickdp/xtpatterns/internal/store"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP",
		RunE:  runServe,
	}

	serveAddr string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Output.DBPath == "" {
		return errors.New("output.db_path is required to serve runs")
	}
	st, err := store.NewStore(a.cfg.Output.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	h, err := server.NewHandlers(st, a.metrics, a.logger.With("component", "server"))
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{Addr: addr, Handler: server.New(h, a.cfg.Trace.Service), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
