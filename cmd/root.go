package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meko-christian/mail-sorter/internal/config"
	"github.com/meko-christian/mail-sorter/internal/credential"
)

var rootCmd = &cobra.Command{
	Use:   "mail-sorter",
	Short: "Classify IMAP mail with an LLM and sort it into folders",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Setup logger after flag parsing
		setupLogger()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String("log-level", "info", "Set the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./config.yaml)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config"))

	cobra.OnInitialize(initConfig)

	// Register subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(initCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	// .env keeps working for installs that predate config.yaml.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	if file := viper.GetString("config_file"); file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	config.SetDefaults(viper.GetViper())

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("No config.yaml found in current directory, using defaults and environment.",
				"hint", "Run `mail-sorter init` to create one interactively.")
		} else {
			slog.Error("Failed to read config", "error", err)
		}
	}
}

// loadConfig reads the effective configuration, fills secrets from the
// system keyring and logs every validation problem.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}

	cfg = withKeyringSecrets(cfg)

	for _, problem := range config.NewValidator().Validate(cfg) {
		slog.Warn("Configuration problem", "problem", problem)
	}

	return cfg, nil
}

func withKeyringSecrets(cfg config.Config) config.Config {
	if cfg.IMAP.Password != "" && cfg.LLM.APIKey != "" {
		return cfg
	}

	store, err := credential.Open()
	if err != nil {
		slog.Debug("System keyring unavailable", "error", err)
		return cfg
	}

	if cfg.IMAP.Password, err = store.Lookup(credential.IMAPPassword, cfg.IMAP.Password); err != nil {
		slog.Warn("Failed to read IMAP password from keyring", "error", err)
	}
	if cfg.LLM.APIKey, err = store.Lookup(credential.LLMAPIKey, cfg.LLM.APIKey); err != nil {
		slog.Warn("Failed to read LLM API key from keyring", "error", err)
	}

	return cfg
}

func setupLogger() {
	level := parseLevel(viper.GetString("log_level"))
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
