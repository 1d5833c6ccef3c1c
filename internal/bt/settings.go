package bt

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"
)

// ErrNotConfigured is returned when the source or backup directory is missing.
// The worker declines to start without treating this as a failure.
var ErrNotConfigured = errors.New("source and backup directories are not configured")

// Mode selects the change-detection strategy. It is fixed for the life of a worker.
type Mode string

const (
	// ModeEvent reacts to filesystem notifications, debounced per path.
	ModeEvent Mode = "event"
	// ModePeriodic rescans the whole source tree on a fixed interval.
	ModePeriodic Mode = "periodic"
)

// ParseMode maps a configured mode string to a Mode.
// Anything other than "periodic" selects event mode.
func ParseMode(s string) Mode {
	if s == string(ModePeriodic) {
		return ModePeriodic
	}
	return ModeEvent
}

// Settings is the immutable settings snapshot a worker runs with.
type Settings struct {
	SourceDir string
	BackupDir string
	Mode      Mode
	// TimeValue is the debounce window in event mode and the scan interval in periodic mode.
	TimeValue time.Duration
	Format    string
}

// NewSettings builds a Settings record from raw configuration values.
// Directories are made absolute so that event paths and relative-path
// computations agree. Returns ErrNotConfigured if either directory is empty.
func NewSettings(sourceDir, backupDir, mode string, timeValue float64, format string) (Settings, error) {
	if sourceDir == "" || backupDir == "" {
		return Settings{}, ErrNotConfigured
	}
	interval, err := secondsToDuration(timeValue)
	if err != nil {
		return Settings{}, err
	}

	src, err := filepath.Abs(sourceDir)
	if err != nil {
		return Settings{}, fmt.Errorf("resolving source directory: %w", err)
	}
	dst, err := filepath.Abs(backupDir)
	if err != nil {
		return Settings{}, fmt.Errorf("resolving backup directory: %w", err)
	}

	return Settings{
		SourceDir: src,
		BackupDir: dst,
		Mode:      ParseMode(mode),
		TimeValue: interval,
		Format:    format,
	}, nil
}

// Seconds renders TimeValue the way it appears in the activity log ("5", "0.5").
func (s Settings) Seconds() string {
	return strconv.FormatFloat(s.TimeValue.Seconds(), 'f', -1, 64)
}

// secondsToDuration converts a configured number of seconds, rejecting
// anything that does not round to at least one nanosecond.
func secondsToDuration(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0, fmt.Errorf("time_value must be a positive number of seconds, got %v", seconds)
	}
	ns := math.Round(seconds * float64(time.Second))
	if ns < 1 || ns >= float64(math.MaxInt64) {
		return 0, fmt.Errorf("time_value %v is out of range", seconds)
	}
	return time.Duration(ns), nil
}
