package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/feedwiki/archive"
	"github.com/scipunch/feedwiki/config"
	"github.com/scipunch/feedwiki/entry"
	"github.com/scipunch/feedwiki/fetcher"
	"github.com/scipunch/feedwiki/filter"
	"github.com/scipunch/feedwiki/index"
	"github.com/scipunch/feedwiki/store"
)

// fakeFeeds serves canned feeds for every transport
type fakeFeeds struct {
	feeds map[string]fetcher.Feed
	errs  map[string]error
	calls []string
}

func (f *fakeFeeds) sources() *fetcher.Registry {
	reg := fetcher.NewRegistry()
	reg.Register(fetcher.HTTP, f)
	reg.Register(fetcher.File, f)
	return reg
}

func (f *fakeFeeds) Fetch(_ context.Context, url string) (fetcher.Feed, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return fetcher.Feed{}, err
	}
	return f.feeds[url], nil
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, entry.Entry) (bool, error) {
	return false, errors.New("disk I/O error")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testConfig(t *testing.T, feeds ...string) config.Config {
	t.Helper()
	conf := config.Default()
	dir := t.TempDir()
	conf.Feeds = feeds
	conf.OutputDirectory = filepath.Join(dir, "out_md")
	conf.DatabasePath = filepath.Join(dir, "news.db")
	return conf
}

func openStore(t *testing.T, conf config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), conf.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func countRows(t *testing.T, st *store.Store) int {
	t.Helper()
	n, err := st.Count(context.Background())
	require.NoError(t, err)
	return n
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func items(links ...string) []fetcher.FeedItem {
	var out []fetcher.FeedItem
	for _, link := range links {
		out = append(out, fetcher.FeedItem{
			Title:       "Title " + link,
			Link:        link,
			Description: "Summary of " + link,
		})
	}
	return out
}

var runAt = time.Date(2024, 5, 6, 9, 15, 0, 0, time.Local)

func TestRun_SingleFeedScenario(t *testing.T) {
	const url = "https://example.com/rss"
	conf := testConfig(t, url)
	st := openStore(t, conf)

	feeds := &fakeFeeds{feeds: map[string]fetcher.Feed{
		url: {
			Title: "Example",
			Items: []fetcher.FeedItem{
				{Title: "Empty", Link: "https://example.com/empty"},
				{Title: "Long", Link: "https://example.com/long", Description: strings.Repeat("y", 300)},
				{Title: "Normal", Link: "https://example.com/normal", Description: "normal   text", PublishedRaw: "Mon, 06 May 2024 08:00:00 GMT"},
			},
		},
	}}

	res, err := New(conf, st, WithSources(feeds.sources()), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, countRows(t, st))
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 1, res.Sections)
	assert.Equal(t, filepath.Join(conf.OutputDirectory, "Daily", "2024-05-06-09.md"), res.ArchivePath)

	doc := readFile(t, res.ArchivePath)
	assert.Equal(t, 1, strings.Count(doc, "\n## "))
	assert.Contains(t, doc, "## Example\n")
	assert.Equal(t, 3, strings.Count(doc, "[Original link]"))
	assert.Contains(t, doc, "  - "+entry.NoSummary+"\n")
	assert.Contains(t, doc, "  - "+strings.Repeat("y", entry.MaxSummaryLength)+"\n")
	assert.NotContains(t, doc, strings.Repeat("y", entry.MaxSummaryLength+1))
	assert.Contains(t, doc, "  - normal text\n")

	rows, err := st.Recent(context.Background(), 10)
	require.NoError(t, err)
	for _, row := range rows {
		assert.LessOrEqual(t, utf8.RuneCountInString(row.Summary), entry.MaxSummaryLength)
		assert.Equal(t, "Example", row.Source)
		if row.Link == "https://example.com/empty" {
			assert.Equal(t, entry.NoSummary, row.Summary)
			assert.Equal(t, runAt.Format(entry.TimestampLayout), row.Published)
		}
	}

	home := readFile(t, conf.IndexPath())
	assert.Equal(t, 1, strings.Count(home, "](Daily/"))
	assert.Contains(t, home, index.Line(archive.NewSlot(runAt)))
}

func TestRun_OverlappingRuns(t *testing.T) {
	const url = "https://example.com/rss"
	conf := testConfig(t, url)
	st := openStore(t, conf)

	feeds := &fakeFeeds{feeds: map[string]fetcher.Feed{url: {Title: "Example", Items: items("a", "b", "c")}}}
	_, err := New(conf, st, WithSources(feeds.sources()), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, countRows(t, st))

	feeds.feeds[url] = fetcher.Feed{Title: "Example", Items: items("b", "c", "d")}
	later := runAt.Add(9 * time.Hour)
	res, err := New(conf, st, WithSources(feeds.sources()), WithClock(fixedClock(later)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, countRows(t, st))
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Duplicates)

	// the archive does not consult dedup state
	doc := readFile(t, res.ArchivePath)
	for _, link := range []string{"b", "c", "d"} {
		assert.Contains(t, doc, "[Original link]("+link+")")
	}

	idx, err := index.Load(conf.IndexPath(), conf.Index)
	require.NoError(t, err)
	assert.Equal(t, []string{index.Line(archive.NewSlot(later)), index.Line(archive.NewSlot(runAt))}, idx.Items)
}

func TestRun_SameSlotOverwritesArchive(t *testing.T) {
	const url = "https://example.com/rss"
	conf := testConfig(t, url)
	st := openStore(t, conf)

	feeds := &fakeFeeds{feeds: map[string]fetcher.Feed{url: {Title: "First", Items: items("a")}}}
	first, err := New(conf, st, WithSources(feeds.sources()), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	feeds.feeds[url] = fetcher.Feed{Title: "Second", Items: items("z")}
	second, err := New(conf, st, WithSources(feeds.sources()), WithClock(fixedClock(runAt.Add(30*time.Minute))), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.ArchivePath, second.ArchivePath)

	want, err := archive.Render(archive.Archive{
		Slot: archive.NewSlot(runAt),
		Sections: []archive.Section{{
			Name:    "Second",
			Entries: []entry.Entry{{Title: "Title z", Link: "z", Summary: "Summary of z"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, string(want), readFile(t, second.ArchivePath))

	// each run still adds exactly one index line
	idx, err := index.Load(conf.IndexPath(), conf.Index)
	require.NoError(t, err)
	assert.Len(t, idx.Items, 2)
}

func TestRun_CapsEntriesPerFeed(t *testing.T) {
	const url = "https://example.com/rss"
	conf := testConfig(t, url)
	st := openStore(t, conf)

	var links []string
	for i := 0; i < 15; i++ {
		links = append(links, fmt.Sprintf("https://example.com/%02d", i))
	}
	feeds := &fakeFeeds{feeds: map[string]fetcher.Feed{url: {Items: items(links...)}}}

	res, err := New(conf, st, WithSources(feeds.sources()), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entry.MaxPerSource, countRows(t, st))
	assert.Equal(t, entry.MaxPerSource, res.Entries)

	doc := readFile(t, res.ArchivePath)
	// untitled feed falls back to its URL
	assert.Contains(t, doc, "## "+url+"\n")
	assert.Contains(t, doc, links[9])
	assert.NotContains(t, doc, links[10])
}

func TestRun_FeedFailureIsolated(t *testing.T) {
	const bad, good = "https://bad.example.com/rss", "https://good.example.com/rss"
	conf := testConfig(t, bad, good)
	st := openStore(t, conf)

	feeds := &fakeFeeds{
		feeds: map[string]fetcher.Feed{good: {Title: "Good", Items: items("g1", "g2")}},
		errs:  map[string]error{bad: errors.New("connection refused")},
	}

	res, err := New(conf, st, WithSources(feeds.sources()), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.ErrorContains(t, res.Failed[0], "connection refused")
	assert.Equal(t, []string{bad, good}, feeds.calls)
	assert.Equal(t, 2, countRows(t, st))

	doc := readFile(t, res.ArchivePath)
	assert.Less(t, strings.Index(doc, "## "+bad), strings.Index(doc, "## Good"))
}

func TestRun_FailFast(t *testing.T) {
	const bad, good = "https://bad.example.com/rss", "https://good.example.com/rss"
	conf := testConfig(t, bad, good)
	st := openStore(t, conf)

	feeds := &fakeFeeds{errs: map[string]error{bad: errors.New("connection refused")}}

	_, err := New(conf, st, WithSources(feeds.sources()), WithFailFast(true), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{bad}, feeds.calls)

	_, statErr := os.Stat(conf.IndexPath())
	assert.True(t, os.IsNotExist(statErr), "index must not be touched by an aborted run")
}

func TestRun_StoreErrorsDoNotAbort(t *testing.T) {
	const url = "https://example.com/rss"
	conf := testConfig(t, url)

	feeds := &fakeFeeds{feeds: map[string]fetcher.Feed{url: {Title: "Example", Items: items("a", "b")}}}
	res, err := New(conf, failingStore{}, WithSources(feeds.sources()), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.StoreErrors)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 2, strings.Count(readFile(t, res.ArchivePath), "[Original link]"))
}

func TestRun_NoFeeds(t *testing.T) {
	conf := testConfig(t)
	st := openStore(t, conf)

	res, err := New(conf, st, WithSources((&fakeFeeds{}).sources()), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "# "+archive.NewSlot(runAt).Title()+"\n\n", readFile(t, res.ArchivePath))
	assert.Contains(t, readFile(t, conf.IndexPath()), index.Line(archive.NewSlot(runAt)))
}

func TestRun_Cancelled(t *testing.T) {
	conf := testConfig(t, "https://example.com/rss")
	st := openStore(t, conf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(conf, st, WithSources((&fakeFeeds{}).sources()), WithLogger(quietLogger())).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_FilteredEntriesAreNeitherStoredNorArchived(t *testing.T) {
	const url = "https://example.com/rss"
	conf := testConfig(t, url)
	st := openStore(t, conf)

	f, err := filter.New(config.Filter{ExcludePatterns: []string{"(?i)sponsored"}})
	require.NoError(t, err)

	feeds := &fakeFeeds{feeds: map[string]fetcher.Feed{url: {
		Title: "Example",
		Items: []fetcher.FeedItem{
			{Title: "Keep me", Link: "https://example.com/keep"},
			{Title: "Sponsored: buy", Link: "https://example.com/ad"},
		},
	}}}

	res, err := New(conf, st, WithSources(feeds.sources()), WithFilter(f), WithClock(fixedClock(runAt)), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 1, countRows(t, st))
	doc := readFile(t, res.ArchivePath)
	assert.Contains(t, doc, "https://example.com/keep")
	assert.NotContains(t, doc, "https://example.com/ad")
}
