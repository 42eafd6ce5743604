package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/paninifs/panini/pkg/config"
	"github.com/paninifs/panini/pkg/dlogger"
	"github.com/paninifs/panini/pkg/workspace"
)

// loadConfig merges flags, environment and configuration file into a validated configuration
func loadConfig() (config.Config, error) {
	settings := config.Defaults()
	if err := viper.Unmarshal(&settings); err != nil {
		return config.Config{}, err
	}
	return config.New(settings)
}

func openWorkspace(ctx context.Context) (*workspace.Workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	l, err := dlogger.GetConsoleLogger(cfg.LogLevel())
	if err != nil {
		return nil, err
	}
	return workspace.Open(ctx, cfg, workspace.Logger(l))
}

func closeWorkspace(ctx context.Context, w *workspace.Workspace) {
	if err := w.Close(ctx); err != nil {
		wrapFatalln("close workspace", err)
	}
}

func printYAML(cmd *cobra.Command, v interface{}) error {
	o, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(o)
	return err
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration resulting from flags, environment variables and the configuration file.

The output may be saved as panini.yaml, in the current directory, $HOME/.panini or /etc/panini.
An explicit configuration file may be given with the PANINI_CONFIG environment variable.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			wrapFatalln("invalid configuration", err)
			return
		}
		if err = printYAML(cmd, cfg.Settings()); err != nil {
			wrapFatalln("print configuration", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
