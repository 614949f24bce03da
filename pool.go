package ygggo_mysqlrw

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// ConnPool maps a connection fingerprint to its ConnRecord. It is the single
// source of truth for which connections are alive and is safe for concurrent
// use. Entries stay until deleted; there is no TTL eviction.
type ConnPool struct {
	records *xsync.MapOf[string, *ConnRecord]
}

// NewConnPool creates an empty pool.
func NewConnPool() *ConnPool {
	return &ConnPool{records: xsync.NewMapOf[string, *ConnRecord]()}
}

// Get returns the record stored under key.
func (p *ConnPool) Get(key string) (*ConnRecord, bool) {
	if p == nil || key == "" {
		return nil, false
	}
	return p.records.Load(key)
}

// Set stores rec under key, closing any record it replaces.
func (p *ConnPool) Set(key string, rec *ConnRecord) {
	if p == nil || key == "" || rec == nil {
		return
	}
	if old, loaded := p.records.LoadAndStore(key, rec); loaded && old != rec {
		_ = old.Close()
	}
}

// Delete removes key and closes its connection.
func (p *ConnPool) Delete(key string) {
	if p == nil || key == "" {
		return
	}
	if rec, ok := p.records.LoadAndDelete(key); ok {
		_ = rec.Close()
	}
}

// Len returns the number of pooled connections.
func (p *ConnPool) Len() int {
	if p == nil {
		return 0
	}
	return p.records.Size()
}

// Keys returns the fingerprints currently pooled.
func (p *ConnPool) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, 0, p.records.Size())
	p.records.Range(func(k string, _ *ConnRecord) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Close closes and removes every pooled connection.
func (p *ConnPool) Close() error {
	if p == nil {
		return nil
	}
	var first error
	for _, k := range p.Keys() {
		if rec, ok := p.records.LoadAndDelete(k); ok {
			if err := rec.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// FingerprintInput is everything that makes two connections interchangeable.
type FingerprintInput struct {
	Driver    string
	Host      string
	Port      int
	Username  string
	Password  string
	Charset   string
	DBName    string
	IncludeDB bool
	// connect options
	ConnectTimeout int
	Persistent     bool
	Params         map[string]string
	DSN            string
}

// Fingerprint returns the pool key for in. Equal inputs give equal keys, so
// builders pointed at the same endpoint share one pooled connection.
func Fingerprint(in FingerprintInput) string {
	var b strings.Builder
	b.WriteString("driver=" + in.Driver + "\x00")
	b.WriteString("host=" + in.Host + "\x00")
	b.WriteString("port=" + strconv.Itoa(in.Port) + "\x00")
	b.WriteString("username=" + in.Username + "\x00")
	b.WriteString("password=" + in.Password + "\x00")
	b.WriteString("charset=" + in.Charset + "\x00")
	if in.IncludeDB {
		b.WriteString("dbname=" + in.DBName + "\x00")
	}
	b.WriteString("timeout=" + strconv.Itoa(in.ConnectTimeout) + "\x00")
	b.WriteString("persistent=" + strconv.FormatBool(in.Persistent) + "\x00")
	for _, kv := range sortedParams(in.Params) {
		b.WriteString("param:" + kv + "\x00")
	}
	b.WriteString("dsn=" + in.DSN)
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

func fingerprintOf(driver string, ep EndpointConfig, withoutDB bool) string {
	return Fingerprint(FingerprintInput{
		Driver:         driver,
		Host:           ep.Host,
		Port:           ep.Port,
		Username:       ep.Username,
		Password:       ep.Password,
		Charset:        ep.Charset,
		DBName:         ep.DBName,
		IncludeDB:      !withoutDB,
		ConnectTimeout: ep.ConnectTimeout,
		Persistent:     ep.IsPersistent,
		Params:         ep.Params,
		DSN:            ep.DSN,
	})
}
