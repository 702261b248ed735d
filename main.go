package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iabalyuk/freightbot/config"
)

// Version info set via ldflags at build time.
var Version = "dev"

// rootFlags override the environment.
type rootFlags struct {
	envFile string
	token   string
	dbPath  string
	debug   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:          "freightbot",
		Short:        "Telegram marketplace for cargo and trucks",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "path to a .env file (skipped when missing)")
	cmd.PersistentFlags().StringVar(&flags.token, "token", "", "Telegram bot token (or TELEGRAM_BOT_TOKEN)")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "path to the SQLite database (or DB_PATH)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newMigrateCmd(flags))
	cmd.AddCommand(newStatsCmd(flags))
	return cmd
}

// loadConfig reads the environment and applies the flag overrides.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return nil, err
	}
	if flags.token != "" {
		cfg.TelegramToken = flags.token
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
