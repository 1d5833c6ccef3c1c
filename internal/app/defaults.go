package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns the locations the worker falls back to when the
// config file leaves them out:
//
//	config_path  $AUTOBACKUP_CONFIG_PATH, else ~/.config/autobackup.toml
//	base_dir     $AUTOBACKUP_HOME, else ~/.local/share/autobackup
//	log_dir      <base_dir>/log, holding the rotated autobackup.log
//	data_dir     <base_dir>/db, holding the catalog database
//
// The activity log is not among them; it always lives in backup_dir.
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"data_dir":    filepath.Join(baseDir, "db"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("AUTOBACKUP_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "autobackup.toml"), nil
}

// getBaseDir follows the XDG data layout unless AUTOBACKUP_HOME is set.
func getBaseDir() (string, error) {
	if path := os.Getenv("AUTOBACKUP_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "autobackup"), nil
}
