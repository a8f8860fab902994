package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	logLevelFlag string
	noColorFlag  bool

	// appConfig is loaded before every command runs.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hitwire",
	Short: "HTTP client and mock server for API tests.",
	Long: `hitwire sends HTTP requests through its pooled or event-loop client
and serves mock APIs with sessions, cookies and templated responses
declared in a YAML routes file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadAppConfig,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default: search the current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error (default: $HITWIRE_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func loadAppConfig(cmd *cobra.Command, _ []string) error {
	if logLevelFlag != "" {
		logger.InitWithLevel(logLevelFlag)
	} else {
		logger.Init()
	}

	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	if noColorFlag {
		cfg.NoColor = config.BoolPtr(true)
	}
	color.NoColor = color.NoColor || cfg.GetNoColor()
	appConfig = cfg
	return nil
}
