// Package shellcache is the offline cache in front of the app shell. Shell
// assets are served cache-first; the price document is served network-first
// with a fallback to the last stored copy.
package shellcache

// Config is the immutable description of one cache generation. Build it
// once at startup and never mutate it.
type Config struct {
	// CacheName names the store; bump it to start a fresh generation.
	CacheName string
	// Assets are the paths fetched and stored on install.
	Assets []string
	// DataPath is the one path served network-first.
	DataPath string
}

// DefaultConfig returns the manifest of the fuel price app shell.
func DefaultConfig() Config {
	return Config{
		CacheName: "fuelkl-shell-v1",
		Assets: []string{
			"/",
			"/index.html",
			"/manifest.json",
			"/icons/icon-192.png",
			"/icons/icon-512.png",
			"/prices.json",
		},
		DataPath: "/prices.json",
	}
}

// Strategy is the per-request routing decision.
type Strategy int

const (
	CacheFirst Strategy = iota
	NetworkFirst
)

func (s Strategy) String() string {
	if s == NetworkFirst {
		return "network_first"
	}
	return "cache_first"
}

// Decide picks the strategy for a request path. Only an exact match on the
// data path is network-first.
func Decide(cfg Config, path string) Strategy {
	if path == cfg.DataPath {
		return NetworkFirst
	}
	return CacheFirst
}
