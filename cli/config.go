package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

const (
	DefCoordinatorURL = "http://localhost:7070"
	DefBrokerURL      = "tcp://localhost:1883"
	DefBaseTopic      = "fedledger"
)

type Config struct {
	Coordinator CoordinatorConfig `toml:"coordinator"`
	MQTT        MQTTConfig        `toml:"mqtt"`
}

type CoordinatorConfig struct {
	URL             string `toml:"url"`
	TLSVerification bool   `toml:"tls_verification"`
}

type MQTTConfig struct {
	URL       string `toml:"url"`
	BaseTopic string `toml:"base_topic"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

func DefaultConfig() Config {
	return Config{
		Coordinator: CoordinatorConfig{URL: DefCoordinatorURL},
		MQTT: MQTTConfig{
			URL:       DefBrokerURL,
			BaseTopic: DefBaseTopic,
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults. A missing file
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}

	var file Config
	if err := tree.Unmarshal(&file); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return file.withDefaults(cfg), nil
}

func (c Config) withDefaults(def Config) Config {
	if c.Coordinator.URL == "" {
		c.Coordinator.URL = def.Coordinator.URL
	}
	if c.MQTT.URL == "" {
		c.MQTT.URL = def.MQTT.URL
	}
	if c.MQTT.BaseTopic == "" {
		c.MQTT.BaseTopic = def.MQTT.BaseTopic
	}

	return c
}
