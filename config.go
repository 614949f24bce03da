package ygggo_mysqlrw

import (
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

const (
	defaultPort    = 3306
	defaultCharset = "utf8"
	defaultDriver  = "mysql"
)

// EndpointConfig describes one physical MySQL server (the master or a slave).
type EndpointConfig struct {
	Host     string `json:"host" yaml:"host" toml:"host"`
	HostIP   string `json:"host_ip,omitempty" yaml:"host_ip" toml:"host_ip"`
	Port     int    `json:"port" yaml:"port" toml:"port"`
	DBName   string `json:"dbname" yaml:"dbname" toml:"dbname"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password" yaml:"password" toml:"password"`
	Charset  string `json:"charset" yaml:"charset" toml:"charset"`
	// ConnectTimeout is the dial timeout in seconds.
	ConnectTimeout int  `json:"connect_timeout,omitempty" yaml:"connect_timeout" toml:"connect_timeout"`
	IsPersistent   bool `json:"is_persistent,omitempty" yaml:"is_persistent" toml:"is_persistent"`
	// Params are passed through to the driver DSN (tls, parseTime, loc...).
	Params map[string]string `json:"params,omitempty" yaml:"params" toml:"params"`
	// DSN, when set, is used verbatim instead of the field based DSN.
	DSN string `json:"dsn,omitempty" yaml:"dsn" toml:"dsn"`
}

// GroupConfig is one database group: a master and its slaves.
type GroupConfig struct {
	// Driver allows overriding the sql driver (e.g., "mysql" in prod, "sqlmock" in tests).
	Driver  string           `json:"driver,omitempty" yaml:"driver" toml:"driver"`
	Master  EndpointConfig   `json:"master" yaml:"master" toml:"master"`
	Slaves  []EndpointConfig `json:"slaves" yaml:"slaves" toml:"slaves"`
	Backups []EndpointConfig `json:"backups,omitempty" yaml:"backups" toml:"backups"`
	// Backup is a single backup endpoint added to the slaves when Backups
	// is empty.
	Backup *EndpointConfig `json:"backup,omitempty" yaml:"backup" toml:"backup"`
	// ConnectWaitTimeout is the idle time in seconds after which a pooled
	// connection is re-established before use. Zero disables it.
	ConnectWaitTimeout int `json:"connect_wait_timeout,omitempty" yaml:"connect_wait_timeout" toml:"connect_wait_timeout"`
	// ConnectMaxTime is the legacy name of ConnectWaitTimeout.
	ConnectMaxTime   int   `json:"connect_max_time,omitempty" yaml:"connect_max_time" toml:"connect_max_time"`
	HostToIP         *bool `json:"host_to_ip,omitempty" yaml:"host_to_ip" toml:"host_to_ip"`
	DSNWithoutDBName bool  `json:"dsn_without_dbname,omitempty" yaml:"dsn_without_dbname" toml:"dsn_without_dbname"`
}

func (g GroupConfig) driver() string {
	if strings.TrimSpace(g.Driver) == "" {
		return defaultDriver
	}
	return g.Driver
}

func (g GroupConfig) waitTimeout() time.Duration {
	secs := g.ConnectWaitTimeout
	if secs == 0 {
		secs = g.ConnectMaxTime
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (g GroupConfig) hostToIP() bool {
	return g.HostToIP == nil || *g.HostToIP
}

// withBackups returns a copy where the backup endpoints take the place of
// the slaves. A lone Backup joins the slaves instead.
func (g GroupConfig) withBackups() GroupConfig {
	switch {
	case len(g.Backups) > 0:
		g.Slaves = append([]EndpointConfig(nil), g.Backups...)
	case g.Backup != nil:
		g.Slaves = append(append([]EndpointConfig(nil), g.Slaves...), *g.Backup)
	default:
		return g
	}
	g.Backups, g.Backup = nil, nil
	return g
}

func (e EndpointConfig) withDefaults() EndpointConfig {
	if e.Port <= 0 {
		e.Port = defaultPort
	}
	if e.Charset == "" {
		e.Charset = defaultCharset
	}
	return e
}

// address returns host:port, preferring the resolved ip when known.
func (e EndpointConfig) address() string {
	host := e.Host
	if e.HostIP != "" {
		host = e.HostIP
	}
	return net.JoinHostPort(host, strconv.Itoa(e.Port))
}

// dsn returns the go-sql-driver DSN for the endpoint.
// Priority: if DSN is non-empty, return it unchanged.
func (e EndpointConfig) dsn(withoutDB bool) string {
	if strings.TrimSpace(e.DSN) != "" {
		return e.DSN
	}
	e = e.withDefaults()
	mc := mysql.NewConfig()
	mc.User = e.Username
	mc.Passwd = e.Password
	mc.Net = "tcp"
	mc.Addr = e.address()
	if !withoutDB {
		mc.DBName = e.DBName
	}
	if e.ConnectTimeout > 0 {
		mc.Timeout = time.Duration(e.ConnectTimeout) * time.Second
	}
	mc.Params = map[string]string{"charset": e.Charset}
	for k, v := range e.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

// Environment variables understood by ApplyEnv.
const (
	EnvDriver      = "YGGGO_MYSQL_DRIVER"
	EnvDSN         = "YGGGO_MYSQL_DSN"
	EnvHost        = "YGGGO_MYSQL_HOST"
	EnvPort        = "YGGGO_MYSQL_PORT"
	EnvUsername    = "YGGGO_MYSQL_USERNAME"
	EnvPassword    = "YGGGO_MYSQL_PASSWORD"
	EnvDatabase    = "YGGGO_MYSQL_DATABASE"
	EnvCharset     = "YGGGO_MYSQL_CHARSET"
	EnvParams      = "YGGGO_MYSQL_PARAMS"
	EnvSlaveHosts  = "YGGGO_MYSQL_SLAVE_HOSTS"
	EnvWaitTimeout = "YGGGO_MYSQL_CONNECT_WAIT_TIMEOUT"
)

// ApplyEnv overrides the master endpoint from YGGGO_MYSQL_* variables.
// YGGGO_MYSQL_SLAVE_HOSTS (comma separated host[:port]) replaces the slaves
// with copies of the master pointed at those hosts.
func ApplyEnv(cfg *GroupConfig) {
	if cfg == nil {
		return
	}
	if v := os.Getenv(EnvDriver); v != "" {
		cfg.Driver = v
	}
	m := &cfg.Master
	if v := os.Getenv(EnvDSN); v != "" {
		m.DSN = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		m.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			m.Port = p
		}
	}
	if v := os.Getenv(EnvUsername); v != "" {
		m.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		m.Password = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		m.DBName = v
	}
	if v := os.Getenv(EnvCharset); v != "" {
		m.Charset = v
	}
	if v := os.Getenv(EnvParams); v != "" {
		if m.Params == nil {
			m.Params = map[string]string{}
		}
		for _, kv := range strings.Split(v, "&") {
			k, val, ok := strings.Cut(kv, "=")
			if ok && k != "" {
				m.Params[k] = val
			}
		}
	}
	if v := os.Getenv(EnvWaitTimeout); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.ConnectWaitTimeout = secs
		}
	}
	if v := os.Getenv(EnvSlaveHosts); v != "" {
		cfg.Slaves = nil
		for _, h := range strings.Split(v, ",") {
			h = strings.TrimSpace(h)
			if h == "" {
				continue
			}
			s := *m
			s.DSN = ""
			s.HostIP = ""
			if host, port, err := net.SplitHostPort(h); err == nil {
				s.Host = host
				if p, err := strconv.Atoi(port); err == nil {
					s.Port = p
				}
			} else {
				s.Host = h
			}
			cfg.Slaves = append(cfg.Slaves, s)
		}
	}
}

// sortedParams returns the endpoint params as k=v pairs in stable order.
func sortedParams(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+params[k])
	}
	return out
}
