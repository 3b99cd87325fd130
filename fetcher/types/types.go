package types

import (
	"context"
)

// Feed represents a collection of items from a feed source
type Feed struct {
	Title string
	Items []FeedItem
}

// FeedItem represents a single item in a feed
type FeedItem struct {
	Title       string
	Link        string
	Description string
	// PublishedRaw is the date string exactly as the feed carries it
	PublishedRaw string
}

// FeedFetcher is an interface for fetching feeds from different sources
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (Feed, error)
}
