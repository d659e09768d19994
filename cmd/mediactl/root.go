package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serverURL string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:   "mediactl",
	Short: "mediactl is the command-line client for the media dispatch service.",
	Long:  `A CLI for submitting media jobs to a running dispatch service and inspecting their status.`,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Base URL of the dispatch service")
	rootCmd.PersistentFlags().StringVarP(&apiKey, "api-key", "k", "", "API key sent with every request")

	if err := viper.BindPFlag("SERVER", rootCmd.PersistentFlags().Lookup("server")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("API_KEY", rootCmd.PersistentFlags().Lookup("api-key")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
}

// initConfig reads in ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("MEDIACTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	serverURL = viper.GetString("SERVER")
	apiKey = viper.GetString("API_KEY")
}
