package fetcher

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// RSSFetcher fetches RSS and Atom feeds over HTTP using gofeed
type RSSFetcher struct {
	parser *gofeed.Parser
}

// NewRSSFetcher creates a new RSS fetcher
func NewRSSFetcher() *RSSFetcher {
	return &RSSFetcher{
		parser: gofeed.NewParser(),
	}
}

// Fetch retrieves and parses a feed from the given URL
func (f *RSSFetcher) Fetch(ctx context.Context, url string) (Feed, error) {
	gofeedFeed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to parse feed at '%s' with %w", url, err)
	}
	return convert(gofeedFeed), nil
}
