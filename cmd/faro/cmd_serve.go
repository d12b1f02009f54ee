package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		flagInterface string
		flagPort      int
		flagOpen      bool
		flagMode      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search service",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()

			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			if flagInterface != "" {
				cfg.AppSettings.Host = flagInterface
			}

			if flagPort != 0 {
				cfg.AppSettings.Port = flagPort
			}

			docs, err := loadDocuments(cfg.AppSettings.MetaFilePath)
			if err != nil {
				return err
			}

			devMode := flagMode == "dev"
			if devMode {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			app, err := server.Build(cmd.Context(), cfg, docs, log, version, devMode)
			if err != nil {
				return failDatabase(err)
			}

			url := "http://" + app.Addr()

			fmt.Fprintf(os.Stderr, "\n  %s %s ready in %d ms\n", cfg.AppSettings.Name, version, time.Since(start).Milliseconds())
			fmt.Fprintf(os.Stderr, "  Local: %s\n\n", url)

			if flagOpen {
				log.WithField("url", url).Info("open the printed URL in your browser")
			}

			return app.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&flagInterface, "interface", "", "Listen address, overrides the config file")
	cmd.Flags().IntVar(&flagPort, "port", 0, "Listen port, overrides the config file")
	cmd.Flags().BoolVar(&flagOpen, "open", false, "Print the service URL prominently for opening in a browser")
	cmd.Flags().StringVar(&flagMode, "mode", "prod", "Run mode: dev|prod")

	return cmd
}

// loadDocuments loads the meta file, mapping open failures and parse
// failures to their exit codes.
func loadDocuments(path string) ([]domain.Document, error) {
	docs, err := domain.LoadMeta(path)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil, failMetaOpen(err)
		}

		return nil, failMeta(err)
	}

	return docs, nil
}
