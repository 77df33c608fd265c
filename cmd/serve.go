/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgeproj/forge/internal/server"
)

var (
	servePortFlag    int
	serveOriginsFlag []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workspace REST API",
	Long: `Serve the Forge workspace over HTTP so browser clients or other
forge processes (store backend "http") can share this machine's projects.
Set api.token in the config to require a bearer credential.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		assistant, err := GetAssistant(cmd.Context(), st)
		if err != nil {
			return err
		}

		srv := server.New(st, assistant, server.Options{
			Port:           servePortFlag,
			Token:          GetConfig().API.Token,
			AllowedOrigins: serveOriginsFlag,
		})

		var wg sync.WaitGroup
		errChan := make(chan error, 1)
		srv.Start(&wg, errChan)
		cmd.Printf("Forge API listening on :%d\n", servePortFlag)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errChan:
			return err
		case <-stop:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		wg.Wait()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePortFlag, "port", 8731, "port to listen on")
	serveCmd.Flags().StringSliceVar(&serveOriginsFlag, "allow-origin", nil, "origins granted CORS access")
}
