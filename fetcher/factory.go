package fetcher

import (
	"strings"
)

// Kind names the transport a feed URL is read through
type Kind = string

var (
	HTTP = Kind("http")
	File = Kind("file")
)

// KindOf classifies a configured feed URL
func KindOf(url string) Kind {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return HTTP
	}
	return File
}

// Registry hands out one fetcher per transport kind
type Registry struct {
	fetchers map[Kind]FeedFetcher
}

// NewRegistry creates a registry with the default fetchers for every kind
func NewRegistry() *Registry {
	return &Registry{
		fetchers: map[Kind]FeedFetcher{
			HTTP: NewRSSFetcher(),
			File: NewFileFetcher(),
		},
	}
}

// Register overrides the fetcher used for a kind
func (r *Registry) Register(kind Kind, f FeedFetcher) {
	r.fetchers[kind] = f
}

// ForURL returns the fetcher that should handle url
func (r *Registry) ForURL(url string) FeedFetcher {
	return r.fetchers[KindOf(url)]
}
