package ygggo_mysqlrw

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadGroups reads named database groups from a YAML, TOML or JSON file.
// The format is picked by extension. The top level maps group name to GroupConfig:
//
//	user:
//	  connect_wait_timeout: 30
//	  master: {host: db-m, port: 3306, dbname: user, username: app, password: secret}
//	  slaves:
//	    - {host: db-s1, port: 3306, dbname: user, username: app, password: secret}
func LoadGroups(path string) (map[string]GroupConfig, error) {
	groups := map[string]GroupConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &groups); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &groups); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &groups); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return groups, nil
}

// LoadGroup reads a single named group from path and applies environment overrides.
func LoadGroup(path, name string) (GroupConfig, error) {
	groups, err := LoadGroups(path)
	if err != nil {
		return GroupConfig{}, err
	}
	g, ok := groups[name]
	if !ok {
		return GroupConfig{}, fmt.Errorf("database group %q not found in %s", name, path)
	}
	ApplyEnv(&g)
	return g, nil
}
