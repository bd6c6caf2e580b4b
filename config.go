package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFile = "applications.toml"
	defaultListen     = ":8080"
	defaultLogLevel   = "info"
	defaultCacheSize  = 100
)

var errNoApplications = errors.New("no applications configured")

// config holds the command line options of the load balancer.
type config struct {
	ConfigFile    string `short:"C" long:"config" description:"Path to the TOML file listing the backend applications"`
	Listen        string `long:"listen" description:"Address to accept proxied HTTP requests on"`
	MetricsListen string `long:"metricslisten" description:"Address to serve Prometheus metrics on, empty to disable"`
	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical or off"`
}

func defaultConfig() config {
	return config{
		ConfigFile: defaultConfigFile,
		Listen:     defaultListen,
		DebugLevel: defaultLogLevel,
	}
}

// poolConfig is the layout of the applications file.
type poolConfig struct {
	Applications []Application
	Cache        bool // Enable/disable caching
	CacheSize    int  // Cache capacity, 0 picks the default
}

// loadConfig parses args on top of the defaults.
func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()
	if _, err := flags.ParseArgs(&cfg, args); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadPool reads and validates the applications file at path.
func loadPool(path string) (*poolConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pool config: %w", err)
	}

	return decodePool(string(content))
}

func decodePool(content string) (*poolConfig, error) {
	var pc poolConfig
	if _, err := toml.Decode(content, &pc); err != nil {
		return nil, fmt.Errorf("decode pool config: %w", err)
	}

	if len(pc.Applications) == 0 {
		return nil, errNoApplications
	}
	if pc.CacheSize == 0 {
		pc.CacheSize = defaultCacheSize
	}

	return &pc, nil
}
