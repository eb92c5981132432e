package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Initialize writes the default configuration into dir and returns it.
// An existing configuration is left untouched.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return InitializeFs(afero.NewBasePathFs(afero.NewOsFs(), dir), dir, logger)
}

// InitializeFs is Initialize over an arbitrary filesystem, name is only
// used for log output.
func InitializeFs(fs afero.Fs, name string, logger *log.Logger) (*Configuration, error) {
	exists, err := afero.Exists(fs, ConfigurationName)
	if err != nil {
		return nil, err
	}

	if exists {
		logger.Printf("- %s already exists, skipping\n", filepath.Join(name, ConfigurationName))
	} else {
		logger.Printf("- writing %s\n", filepath.Join(name, ConfigurationName))
		if err := afero.WriteFile(fs, ConfigurationName, defaultConfigData, 0600); err != nil {
			return nil, fmt.Errorf("couldn't write configuration: %w", err)
		}
	}

	return LoadFs(fs)
}
