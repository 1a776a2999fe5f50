// Command vecturakit is the CLI collaborator described in spec §6: a thin
// wrapper over the facade exposing add/search/update/delete/reset, plus a
// mock subcommand that exercises the whole pipeline with a deterministic
// hash-based embedder so the core can be driven without a real model.
//
// Grounded on cmd/sqvect/main.go's cobra command tree (root command +
// persistent flags + leaf RunE funcs returning wrapped errors).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vecturakit/vecturakit"
)

const (
	defaultDBName     = "vecturakit-cli"
	defaultNumResults = 10
	defaultModelID    = "mock"
)

var (
	dbName     string
	dimension  int
	threshold  float64
	numResults int
	modelID    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "vecturakit",
	Short: "An embeddable, on-device vector database for semantic and hybrid retrieval",
}

func openDB(ctx context.Context) (*vecturakit.DB, error) {
	if configPath != "" {
		fc, err := loadFileConfig(configPath)
		if err != nil {
			return nil, err
		}
		applyFileConfig(fc)
	}

	cfg := vecturakit.DefaultConfig(dbName)
	if dimension > 0 {
		cfg.Dimension = dimension
	}
	if numResults > 0 {
		cfg.Search.TopK = numResults
	}
	if threshold > 0 {
		cfg.Search.Threshold = &threshold
	}
	dim := dimension
	if dim == 0 {
		dim = 128
	}
	return vecturakit.Open(ctx, cfg, vecturakit.NewMockEmbedder(dim), nil)
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Embed and persist a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.Add(cmd.Context(), args[0], "")
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Hybrid search over the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		results, err := db.SearchText(cmd.Context(), args[0], vecturakit.SearchOptions{TopK: numResults})
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("%s\t%.4f\t%s\n", r.ID, r.Score, r.Text)
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id> <text>",
	Short: "Replace a document's text and embedding",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Update(cmd.Context(), args[0], args[1])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more documents by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Delete(cmd.Context(), args)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every document in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Reset(cmd.Context())
	},
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Load a small demo dataset via the deterministic mock embedder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		demo := []string{
			"The quick brown fox",
			"Pack my box with five dozen liquor jugs",
			"How vexingly quick daft zebras jump",
		}
		ids, err := db.AddBatch(cmd.Context(), demo, nil)
		if err != nil {
			return err
		}
		for i, id := range ids {
			fmt.Printf("%s\t%s\n", id, demo[i])
		}
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbName, "db-name", defaultDBName, "database name")
	rootCmd.PersistentFlags().IntVar(&dimension, "dimension", 0, "embedding dimension (0 = detect)")
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", 0, "score threshold in [0,1] (0 = none)")
	rootCmd.PersistentFlags().IntVar(&numResults, "num-results", defaultNumResults, "number of results to return")
	rootCmd.PersistentFlags().StringVar(&modelID, "model-id", defaultModelID, "embedder model identifier (only \"mock\" is built in)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file overriding the flag defaults above")

	rootCmd.AddCommand(addCmd, searchCmd, updateCmd, deleteCmd, resetCmd, mockCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
