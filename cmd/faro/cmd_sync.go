package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/farosearch/faro/internal/db"
	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/embedding"
	"github.com/farosearch/faro/internal/ingest"
	"github.com/farosearch/faro/internal/schema"
)

// sourcesRoot is where per-document data files live: ./datasources/<doc>/.
const sourcesRoot = "datasources"

func newSyncCmd() *cobra.Command {
	var (
		flagStrat     string
		flagBaseDelay uint
		flagChunkSize int
		flagDoc       string
		flagForce     bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ingest data sources and build the search indexes for a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagStrat != "fts" && flagStrat != "vector" && flagStrat != "all" {
				return failMeta(fmt.Errorf("unknown sync strategy %q, use fts, vector or all", flagStrat))
			}

			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			docs, err := loadDocuments(cfg.AppSettings.MetaFilePath)
			if err != nil {
				return err
			}

			doc, err := domain.Find(docs, flagDoc)
			if err != nil {
				available := make([]string, 0, len(docs))
				for _, d := range docs {
					available = append(available, d.Name)
				}

				return failMeta(fmt.Errorf("%q is not one of the available documents: %v", flagDoc, available))
			}

			ctx := cmd.Context()

			handle, err := db.Open(cfg.DBSettings.DBPath)
			if err != nil {
				return failDatabase(err)
			}
			defer handle.Close()

			if flagForce {
				log.WithField("document", doc.Name).Warn("dropping existing tables")

				if err := schema.DropDocument(ctx, handle, doc); err != nil {
					return failDatabase(err)
				}
			}

			if err := schema.EnsureGlobal(ctx, handle); err != nil {
				return failDatabase(err)
			}

			if err := schema.EnsureDocument(ctx, handle, doc); err != nil {
				return failDatabase(err)
			}

			ing := ingest.NewIngestor(handle, log)

			start := time.Now()

			rawInserted, err := ing.Ingest(ctx, doc, filepath.Join(sourcesRoot, doc.Name))
			if err != nil {
				return failDatabase(err)
			}

			fmt.Printf("%d entries inserted into %s (%d ms)\n",
				rawInserted, doc.RawTable(), time.Since(start).Milliseconds())

			start = time.Now()

			projected, err := ing.Project(ctx, doc)
			if err != nil {
				return failDatabase(err)
			}

			fmt.Printf("%d entries inserted into %s (%d ms)\n",
				projected, doc.Table(), time.Since(start).Milliseconds())

			if flagStrat == "fts" || flagStrat == "all" {
				start = time.Now()

				inserted, err := ing.SyncFTS(ctx, doc)
				if err != nil {
					return failDatabase(err)
				}

				fmt.Printf("%d entries synchronized into %s (%d ms)\n",
					inserted, doc.FTSTable(), time.Since(start).Milliseconds())
			}

			if flagStrat == "vector" || flagStrat == "all" {
				client := embedding.NewClient(
					cfg.EmbeddingProvider.EndpointURL,
					cfg.EmbeddingProvider.AuthToken.Value(),
					log,
				)

				start = time.Now()

				stats, err := ing.SyncVectors(ctx, doc, client, flagBaseDelay, flagChunkSize)
				if err != nil {
					return failDatabase(err)
				}

				fmt.Printf("%d entries synchronized into %s (%d ms, %.1f ms mean per chunk)\n",
					stats.Inserted, doc.VecTable(), time.Since(start).Milliseconds(), stats.MeanChunkMillis)
			}

			fmt.Println("synchronization finished")

			return nil
		},
	}

	cmd.Flags().StringVar(&flagStrat, "sync-strat", "all", "Index to build: fts|vector|all")
	cmd.Flags().UintVar(&flagBaseDelay, "base-delay", 2, "Exponential backoff base for embedding retries")
	cmd.Flags().IntVar(&flagChunkSize, "chunk-size", 256, "Rows per embedding batch")
	cmd.Flags().StringVar(&flagDoc, "doc", "", "Document to synchronize")
	cmd.Flags().BoolVar(&flagForce, "force", false, "Drop the document tables before setup")
	cmd.MarkFlagRequired("doc") //nolint:errcheck // flag exists.

	return cmd
}
