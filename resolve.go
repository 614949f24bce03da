package ygggo_mysqlrw

import (
	"context"
	"net"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultResolverSize = 256

// HostResolver turns configured host names into IPs once per run so pool
// fingerprints and dial targets stay stable across DNS changes.
type HostResolver struct {
	cache  *lru.Cache[string, string]
	lookup func(ctx context.Context, host string) ([]string, error)
}

// NewHostResolver creates a resolver caching up to size hosts.
func NewHostResolver(size int) *HostResolver {
	if size <= 0 {
		size = defaultResolverSize
	}
	c, _ := lru.New[string, string](size)
	return &HostResolver{cache: c, lookup: net.DefaultResolver.LookupHost}
}

// Resolve returns the first address of host. IPs and empty hosts are
// returned as is. On lookup failure the host name itself is returned and
// nothing is cached.
func (r *HostResolver) Resolve(ctx context.Context, host string) string {
	if r == nil || host == "" || net.ParseIP(host) != nil {
		return host
	}
	if ip, ok := r.cache.Get(host); ok {
		return ip
	}
	addrs, err := r.lookup(ctx, host)
	if err != nil || len(addrs) == 0 {
		return host
	}
	r.cache.Add(host, addrs[0])
	return addrs[0]
}

// Forget drops the cached address of host.
func (r *HostResolver) Forget(host string) {
	if r != nil {
		r.cache.Remove(host)
	}
}
