package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/foodlens/foodlens-go/cmd/serve"
	"github.com/foodlens/foodlens-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "foodlens",
		Short: "FoodLens food detection service",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(serve.Command(settings))

	return rootCmd
}

// setupFlags configures global flags shared by all subcommands.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Detector.ModelPath, "model", settings.Detector.ModelPath, "Path to the detection model file")
	rootCmd.PersistentFlags().Float64Var(&settings.Detector.Threshold, "threshold", settings.Detector.Threshold, "Minimum confidence threshold for detections")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}
