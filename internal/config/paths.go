package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".account-plan"

// Paths holds resolved filesystem paths for application data.
type Paths struct {
	Base    string // ~/.account-plan
	Config  string // ~/.account-plan/config.yaml
	Data    string // ~/.account-plan/data (SQLite database lives here)
	Logs    string // ~/.account-plan/logs
	Exports string // ~/.account-plan/exports (plain-text report exports)
}

// ResolvePaths computes all standard paths from the home directory.
// APGEN_HOME overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("APGEN_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:    base,
		Config:  filepath.Join(base, "config.yaml"),
		Data:    filepath.Join(base, "data"),
		Logs:    filepath.Join(base, "logs"),
		Exports: filepath.Join(base, "exports"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs, p.Exports} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath returns the location of the session database.
func (p Paths) DatabasePath() string {
	return filepath.Join(p.Data, "sessions.db")
}
