package ome

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfig = `
[client]
rpc_address = "imaging.example.org:4064"
user = "alice"
password = "secret"

[server]
data_path = "data"
secret_key = "not-so-secret"
disk_usage_delay_ms = 250

[[server.user]]
id = 0
name = "root"
password = "omero"
admin = true

[[server.user]]
id = 2
name = "alice"
password = "secret"
group = 3

[logging]
logfile = "logs/omero.log"
max_log_size = 100
max_log_age = 7
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(filename, []byte(testConfig), 0644); err != nil {
		t.Fatalf("couldn't write config file: %v\n", err)
	}
	c, err := LoadConfig(filename)
	if err != nil {
		t.Fatalf("bad TOML configuration: %v\n", err)
	}
	if c.Client.RPCAddress != "imaging.example.org:4064" || c.Client.User != "alice" {
		t.Errorf("bad client section: %+v\n", c.Client)
	}
	if c.Client.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %d\n", c.Client.Timeout)
	}
	if c.Server.RPCAddress != DefaultRPCAddress {
		t.Errorf("expected default server address, got %q\n", c.Server.RPCAddress)
	}
	if c.Server.BlobURL != DefaultBlobURL {
		t.Errorf("expected default blob URL, got %q\n", c.Server.BlobURL)
	}
	if c.Server.DiskUsageDelay != 250 {
		t.Errorf("expected delay 250, got %d\n", c.Server.DiskUsageDelay)
	}
	if len(c.Server.Users) != 2 {
		t.Fatalf("expected 2 users, got %d\n", len(c.Server.Users))
	}
	if !c.Server.Users[0].Admin || c.Server.Users[1].Admin || c.Server.Users[1].Group != 3 {
		t.Errorf("bad users: %+v\n", c.Server.Users)
	}
	if c.Server.DataPath != filepath.Join(dir, "data") {
		t.Errorf("data path not made absolute: %q\n", c.Server.DataPath)
	}
	if c.Logging.Logfile != filepath.Join(dir, "logs", "omero.log") {
		t.Errorf("log file not made absolute: %q\n", c.Logging.Logfile)
	}
	if c.Logging.MaxSize != 100 || c.Logging.MaxAge != 7 {
		t.Errorf("bad logging section: %+v\n", c.Logging)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error on empty filename\n")
	}
	filename := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(filename, []byte("[client\nuser=1"), 0644); err != nil {
		t.Fatalf("couldn't write config file: %v\n", err)
	}
	if _, err := LoadConfig(filename); err == nil {
		t.Fatalf("expected error on malformed TOML\n")
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if len(c.Server.Users) != 1 || c.Server.Users[0].Name != "root" || !c.Server.Users[0].Admin {
		t.Errorf("expected single root admin, got %+v\n", c.Server.Users)
	}
}
