package ome

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultRPCAddress is the default address of the image-data server.
	DefaultRPCAddress = "localhost:4064"

	// DefaultTimeout is the default number of seconds a remote call may take.
	DefaultTimeout = 60

	// DefaultBlobURL keeps original file contents in memory.
	DefaultBlobURL = "mem://"
)

// Config is the parsed TOML configuration shared by the command line and the server.
type Config struct {
	Client  ClientConfig
	Server  ServerConfig
	Logging LogConfig
}

// ClientConfig holds the [client] section: where and as whom to connect.
type ClientConfig struct {
	RPCAddress string `toml:"rpc_address"`
	User       string
	Password   string
	Timeout    int `toml:"timeout_seconds"`
}

// ServerConfig holds the [server] section used by "omero serve".
type ServerConfig struct {
	RPCAddress string `toml:"rpc_address"`

	// DataPath is the directory of the key-value store.  If empty, the store is kept
	// in memory and lost on shutdown.
	DataPath string `toml:"data_path"`

	// BlobURL is a gocloud bucket URL for original file contents, e.g., "file:///data/files".
	BlobURL string `toml:"blob_url"`

	// SecretKey signs session tokens.
	SecretKey string `toml:"secret_key"`

	// DiskUsageDelay is the number of milliseconds a disk usage computation is held
	// before it completes.  Useful to exercise client-side waiting.
	DiskUsageDelay int `toml:"disk_usage_delay_ms"`

	Users []UserConfig `toml:"user"`
}

// UserConfig describes an experimenter known to the server.
type UserConfig struct {
	ID        int64
	Name      string
	FirstName string `toml:"first_name"`
	LastName  string `toml:"last_name"`
	Password  string
	Group     int64
	Admin     bool
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	c := new(Config)
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Client.RPCAddress == "" {
		c.Client.RPCAddress = DefaultRPCAddress
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = DefaultTimeout
	}
	if c.Server.RPCAddress == "" {
		c.Server.RPCAddress = DefaultRPCAddress
	}
	if c.Server.BlobURL == "" {
		c.Server.BlobURL = DefaultBlobURL
	}
	if len(c.Server.Users) == 0 {
		c.Server.Users = []UserConfig{
			{ID: 0, Name: "root", FirstName: "root", LastName: "root", Password: "omero", Group: 0, Admin: true},
		}
	}
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path: %v", err)
		}
	}

	// [server].data_path
	if c.Server.DataPath != "" {
		c.Server.DataPath, err = ConvertToAbsolute(c.Server.DataPath, configDir)
		if err != nil {
			return fmt.Errorf("error converting data_path setting to absolute path: %v", err)
		}
	}
	return nil
}

// LoadConfig loads configuration from a TOML file and fills in defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := new(Config)
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	c.setDefaults()
	return c, nil
}
