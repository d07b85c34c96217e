// Package cli wires configuration, providers and services into the
// rental-copilot command.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github/itish2003/rentalqa/config"
)

var (
	configPath string
	verbose    bool
	appConfig  *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "rental-copilot",
	Short: "Question answering over rental and tenancy documents",
	Long: `Rental Copilot indexes a directory of tenancy documents and answers
questions about them over HTTP, citing the documents it used.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetOutput(cmd.ErrOrStderr())
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.InfoLevel)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		appConfig = cfg
		logrus.WithField("component", "cli").Debugf("loaded config from %s", configPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
