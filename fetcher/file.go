package fetcher

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FileFetcher reads feeds stored on the local filesystem.
// Both "file:///abs/path.xml" and bare paths are accepted.
type FileFetcher struct {
	parser *gofeed.Parser
}

// NewFileFetcher creates a new local file fetcher
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{
		parser: gofeed.NewParser(),
	}
}

// Fetch opens the file behind url and parses it as a feed
func (f *FileFetcher) Fetch(ctx context.Context, url string) (Feed, error) {
	if err := ctx.Err(); err != nil {
		return Feed{}, err
	}

	path := strings.TrimPrefix(url, "file://")
	file, err := os.Open(path)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to open feed file '%s' with %w", path, err)
	}
	defer file.Close()

	gofeedFeed, err := f.parser.Parse(file)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to parse feed file '%s' with %w", path, err)
	}
	return convert(gofeedFeed), nil
}
