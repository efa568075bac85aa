package main

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk scan configuration (spec §6). Command-line
// flags in main.go may override a subset of these fields.
type Config struct {
	BMCPath        string `yaml:"bmc_path"`
	DropNoRead     bool   `yaml:"drop_no_read"`
	IgnoreDisabled bool   `yaml:"ignore_disabled_flag"`
	Compact        bool   `yaml:"compact"`
	NoState        bool   `yaml:"no_state"`
	NoThresholds   bool   `yaml:"no_thresholds"`
	NoIPMI         bool   `yaml:"no_ipmi"`
	NoDCMI         bool   `yaml:"no_dcmi"`
	NoPowerStats   bool   `yaml:"no_powerstats"`
	ExcludeMetrics string `yaml:"exclude_metrics"`
	ExcludeSensors string `yaml:"exclude_sensors"`
	IncludeMetrics string `yaml:"include_metrics"`
	IncludeSensors string `yaml:"include_sensors"`
	ListenAddress  string `yaml:"listen_address"`
	ScanInterval   string `yaml:"scan_interval"`
}

// defaultConfig matches the source's compiled-in defaults.
func defaultConfig() Config {
	return Config{
		ListenAddress: ":9290",
		ScanInterval:  "30s",
	}
}

// loadConfig reads and merges a YAML config file over defaultConfig. A
// missing path is not an error: the daemon runs on defaults plus
// whatever flags main.go applied.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// predicate compiles an optional regex into a match predicate; an empty
// pattern yields nil (never matches).
func predicate(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return re.MatchString, nil
}
