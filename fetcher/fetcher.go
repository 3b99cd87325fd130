package fetcher

import (
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/scipunch/feedwiki/fetcher/types"
)

// Feed, FeedItem and FeedFetcher are re-exported so callers only import one package
type (
	Feed        = types.Feed
	FeedItem    = types.FeedItem
	FeedFetcher = types.FeedFetcher
)

// convert maps a gofeed.Feed onto our own Feed type, keeping feed order
func convert(src *gofeed.Feed) Feed {
	var feed Feed
	if src == nil {
		return feed
	}

	feed.Title = src.Title
	feed.Items = make([]FeedItem, 0, len(src.Items))

	for _, item := range src.Items {
		if item == nil {
			continue
		}
		feed.Items = append(feed.Items, FeedItem{
			Title:        item.Title,
			Link:         itemLink(item),
			Description:  item.Description,
			PublishedRaw: item.Published,
		})
	}

	return feed
}

// itemLink falls back to the guid when it is a permalink and the item has no link
func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	guid := strings.TrimSpace(item.GUID)
	lower := strings.ToLower(guid)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return guid
	}
	return ""
}
