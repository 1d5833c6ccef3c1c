package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"autobackup/internal/app"
	"autobackup/internal/bt"
	"autobackup/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configPath returns the --config flag value, falling back to the defaults.
func configPath(cmd *cobra.Command, defaults map[string]string) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return defaults["config_path"]
}

// loadConfig reads the config file, filling absent keys from the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	path := configPath(cmd, defaults)
	cfg, err := config.ReadFromFile(path, defaults["base_dir"])
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

var rootCmd = &cobra.Command{
	Use:   "autobackup",
	Short: "Mirror changed files into a timestamped backup tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		worker, _ := cmd.Flags().GetBool("worker")
		if !worker {
			return cmd.Help()
		}
		return runWorker(cmd)
	},
}

// runWorker is the headless worker mode. A worker with nothing to do exits
// quietly with status 0.
func runWorker(cmd *cobra.Command) error {
	cfg, _, err := loadConfig(cmd)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	a, err := app.NewWorkerApp(cfg)
	if errors.Is(err, bt.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("initializing worker: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		path := configPath(cmd, defaults)
		cfg := config.NewConfig(defaults["base_dir"])
		cfg.SourceDir, _ = cmd.Flags().GetString("source")
		cfg.BackupDir, _ = cmd.Flags().GetString("backup")

		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		if cfg.SourceDir == "" || cfg.BackupDir == "" {
			fmt.Println("Set source_dir and backup_dir before starting the worker.")
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Source Dir: %s\n", cfg.SourceDir)
		fmt.Printf("Backup Dir: %s\n", cfg.BackupDir)
		fmt.Printf("Format:     %s\n", cfg.Format)
		fmt.Printf("Mode:       %s\n", cfg.Mode)
		fmt.Printf("Time Value: %gs\n", cfg.TimeValue)
		fmt.Printf("Ignore:     %v\n", cfg.Ignore)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Catalog:    %s %s\n", cfg.Catalog.Type, cfg.Catalog.DataDir)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		a, err := app.NewHistoryApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Recent(limit)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No backups recorded.")
			return nil
		}

		for _, rec := range recs {
			fmt.Printf("#%d  %s  %-16s  %s -> %s",
				rec.ID,
				rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				rec.Outcome,
				rec.SourcePath,
				rec.DestPath,
			)
			if rec.Error != "" {
				fmt.Printf("  (%s)", rec.Error)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default $AUTOBACKUP_CONFIG_PATH or ~/.config/autobackup.toml)")
	rootCmd.Flags().Bool("worker", false, "Run the backup worker in the foreground")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().String("source", "", "Directory to watch")
	configInitCmd.Flags().String("backup", "", "Directory to write backups into")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of backups to show")
}
