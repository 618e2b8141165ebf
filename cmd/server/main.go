package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"docsearch/internal/bootstrap"
	"docsearch/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "Document catalog and retrieval-augmented search service",
}

// ConfigFlags locates the TOML configuration.
type ConfigFlags struct {
	Path string
}

func NewConfigFlags() *ConfigFlags {
	return &ConfigFlags{}
}

func (f *ConfigFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Path, "config", f.Path, "path to the TOML config file (defaults to $CONFIG_FILE or "+config.DefaultPath+")")
}

func (f *ConfigFlags) Load() (*config.Config, error) {
	cfg, err := config.Load(f.Path)
	if err != nil {
		return nil, err
	}
	bootstrap.ConfigureLogging(cfg)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
