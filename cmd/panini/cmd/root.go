package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paninifs/panini/pkg/dlogger"
	"github.com/paninifs/panini/pkg/metrics"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "panini",
	Short: "Panini is a content-addressed virtual file system",
	Long: `Panini serves a virtual file system whose file contents are kept as content-addressed blobs.

Blobs are stored under <workspace>/blobs/<bucket>/<address>, where the bucket is picked from the size of the blob.
The namespace and the provenance of files are kept in a metadata database under <workspace>/meta.

Settings are read from flags, environment variables prefixed with PANINI_, or a panini.yaml configuration file.
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool(keyMetrics) {
			l, err := dlogger.GetConsoleLogger(viper.GetString(keyLogLevel))
			if err != nil {
				wrapFatalln("build metrics logger", err)
				return
			}
			metrics.Init(metrics.WithLogger(l.Named("metrics")))
			paniniFlags.root.metrics = metrics.EnsureMetrics("cli", &M{}).(*M)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addWorkspaceFlag(rootCmd)
	addLabelFlag(rootCmd)
	addBucketsFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addCacheSizeFlag(rootCmd)
	addVerifyHashFlag(rootCmd)
	addMetricsFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	defaults := settingsDefaults()
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	if os.Getenv("PANINI_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("PANINI_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.panini")
		viper.AddConfigPath("/etc/panini")
		viper.SetConfigName("panini")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PANINI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
		wrapFatalln("read config file", err)
	}
}
