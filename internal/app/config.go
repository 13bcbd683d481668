package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"keyward/internal/domain"
	"keyward/internal/logging"
	"keyward/internal/secrets"
	"keyward/internal/store"
)

// ConfigFileName is looked up under Home when no explicit path is given.
const ConfigFileName = "config.yaml"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string          `yaml:"home"`       // storage root, e.g. $HOME/.keyward
	Database   string          `yaml:"database"`   // sqlite path, default <home>/db/keyward.db
	Passphrase string          `yaml:"passphrase"` // empty disables at-rest encryption
	Log        logging.Config  `yaml:"log"`
	Scrypt     store.KDFParams `yaml:"scrypt"`
	DeviceID   domain.DeviceID `yaml:"device_id"`
	Keyring    secrets.Config  `yaml:"keyring"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig(home string) Config {
	return Config{
		Home:     home,
		Log:      logging.Config{Level: "info"},
		Scrypt:   store.DefaultKDFParams(),
		DeviceID: domain.PrimaryDeviceID,
	}
}

// LoadConfig overlays the YAML file at path onto base. A missing file
// leaves base untouched. Unknown keys are rejected.
func LoadConfig(path string, base Config) (Config, error) {
	cfg := base
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = cfg.withDefaults()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.Database == "" && c.Home != "" {
		c.Database = filepath.Join(c.Home, "db", "keyward.db")
	}
	if c.DeviceID == 0 {
		c.DeviceID = domain.PrimaryDeviceID
	}
	return c
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("home directory is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Scrypt.N < 2 || c.Scrypt.N&(c.Scrypt.N-1) != 0 {
		return fmt.Errorf("scrypt n must be a power of two greater than 1, got %d", c.Scrypt.N)
	}
	if c.Scrypt.R < 1 || c.Scrypt.P < 1 {
		return fmt.Errorf("scrypt r and p must be positive, got r=%d p=%d", c.Scrypt.R, c.Scrypt.P)
	}
	return nil
}
