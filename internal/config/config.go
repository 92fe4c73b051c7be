// Package config resolves the database and migrations paths once, before
// the engine runs. The engine itself holds no ambient state: it receives
// these as plain parameters.
package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem handle; tests may swap it for a memory fs.
var AppFs = afero.NewOsFs()

const (
	// DefaultDBPath is used when neither flags nor config file set a path.
	DefaultDBPath = "data/database.db"
	// DefaultMigrationsDir is used when nothing else sets a directory.
	DefaultMigrationsDir = "migrations"
	// DefaultConfigFile is the well-known config file name.
	DefaultConfigFile = ".fastmigrate"
)

// Config holds the resolved paths.
type Config struct {
	DBPath        string
	MigrationsDir string
}

// Load resolves configuration from the given ini-style config file (its
// [paths] section may set db and migrations), the FASTMIGRATE_* environment,
// and a .env overlay. CLI flags override config values at the call site, so
// Load only supplies the file/env layer plus defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("ini")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(DefaultConfigFile)
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "fastmigrate"))
		}
	}

	v.SetEnvPrefix("FASTMIGRATE")
	v.AutomaticEnv()

	v.SetDefault("paths.db", DefaultDBPath)
	v.SetDefault("paths.migrations", DefaultMigrationsDir)

	// Missing config files are fine; defaults and env still apply.
	_ = v.ReadInConfig()

	// A .env next to the working directory may carry FASTMIGRATE_* vars.
	if ok, _ := afero.Exists(AppFs, ".env"); ok {
		_ = godotenv.Load()
	}

	return &Config{
		DBPath:        v.GetString("paths.db"),
		MigrationsDir: v.GetString("paths.migrations"),
	}, nil
}
