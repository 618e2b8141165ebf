package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"docsearch/internal/bootstrap"
)

func init() {
	f := NewConfigFlags()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog tables and the stage bucket, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.Load()
			if err != nil {
				return err
			}

			catalog, provider, storageCli, err := bootstrap.NewCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer provider.Close()
			defer storageCli.Close()

			if err := catalog.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			log.Info("schema and stage are ready")
			return nil
		},
	}

	f.BindFlags(cmd.Flags())
	rootCmd.AddCommand(cmd)
}
