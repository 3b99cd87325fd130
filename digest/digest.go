// Package digest runs one collection pass: fetch every configured feed, store
// new entries, write the run's archive and link it from the index.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/scipunch/feedwiki/archive"
	"github.com/scipunch/feedwiki/config"
	"github.com/scipunch/feedwiki/entry"
	"github.com/scipunch/feedwiki/fetcher"
	"github.com/scipunch/feedwiki/filter"
	"github.com/scipunch/feedwiki/index"
)

// Store persists entries, ignoring links it has already seen
type Store interface {
	Upsert(ctx context.Context, e entry.Entry) (bool, error)
}

// Sources picks the fetcher for a feed URL
type Sources interface {
	ForURL(url string) fetcher.FeedFetcher
}

// Result summarizes a finished run
type Result struct {
	Slot        archive.Slot
	ArchivePath string
	Sections    int
	Entries     int
	Inserted    int
	Duplicates  int
	StoreErrors int
	Filtered    int
	// Failed holds one error per feed that could not be fetched
	Failed []error
}

// Runner executes runs against one store
type Runner struct {
	conf       config.Config
	store      Store
	sources    Sources
	normalizer *entry.Normalizer
	filter     *filter.Filter
	now        func() time.Time
	logger     *slog.Logger
	failFast   bool
}

type Option func(*Runner)

// WithClock replaces time.Now, which decides the run's slot and fallback dates
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger replaces slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithFailFast makes a feed fetch error abort the run
func WithFailFast(failFast bool) Option {
	return func(r *Runner) { r.failFast = failFast }
}

// WithFilter drops entries the filter rejects before they are stored
func WithFilter(f *filter.Filter) Option {
	return func(r *Runner) { r.filter = f }
}

// WithSources replaces the default fetcher registry
func WithSources(s Sources) Option {
	return func(r *Runner) { r.sources = s }
}

// New creates a runner for conf that writes entries into store
func New(conf config.Config, store Store, opts ...Option) *Runner {
	r := &Runner{
		conf:       conf,
		store:      store,
		sources:    fetcher.NewRegistry(),
		normalizer: entry.NewNormalizer(conf.StripHTML),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every feed in config order, then writes the archive and updates the index
func (r *Runner) Run(ctx context.Context) (Result, error) {
	now := r.now()
	res := Result{Slot: archive.NewSlot(now)}
	doc := archive.Archive{Slot: res.Slot}

	for _, url := range r.conf.Feeds {
		// Check for cancellation before fetching
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("run interrupted with %w", err)
		}

		section, err := r.collect(ctx, url, now, &res)
		if err != nil {
			if r.failFast {
				return res, err
			}
			r.logger.Warn("feed skipped", "url", url, "error", err)
			res.Failed = append(res.Failed, err)
			section = archive.Section{Name: url}
		}
		doc.Sections = append(doc.Sections, section)
	}
	res.Sections = len(doc.Sections)
	if len(res.Failed) > 0 {
		r.logger.Error("several feeds were not fetched", "feeds", errors.Join(res.Failed...))
	}

	path, err := archive.Write(r.conf.OutputDirectory, doc)
	if err != nil {
		return res, err
	}
	res.ArchivePath = path
	r.logger.Info("archive written", "path", path, "sections", res.Sections, "entries", res.Entries)

	if err := index.Update(r.conf.IndexPath(), r.conf.Index, res.Slot); err != nil {
		return res, err
	}
	r.logger.Info("index updated", "path", r.conf.IndexPath())

	return res, nil
}

// collect fetches one feed and stores its first entries
func (r *Runner) collect(ctx context.Context, url string, now time.Time, res *Result) (archive.Section, error) {
	feed, err := r.sources.ForURL(url).Fetch(ctx, url)
	if err != nil {
		return archive.Section{}, fmt.Errorf("'%s' fetch failed with %w", url, err)
	}

	section := archive.Section{Name: entry.SourceLabel(feed.Title, url)}
	items := lo.Slice(feed.Items, 0, entry.MaxPerSource)
	r.logger.Info("feed fetched", "url", url, "source", section.Name, "items", len(feed.Items), "used", len(items))

	for _, item := range items {
		e := r.normalizer.Normalize(item, section.Name, now)
		if ok, reason := r.filter.Allow(e); !ok {
			res.Filtered++
			r.logger.Debug("entry filtered out", "link", e.Link, "reason", reason)
			continue
		}

		inserted, err := r.store.Upsert(ctx, e)
		switch {
		case err != nil:
			res.StoreErrors++
			r.logger.Error("failed to store entry", "link", e.Link, "error", err)
		case inserted:
			res.Inserted++
			r.logger.Debug("entry stored", "link", e.Link)
		default:
			res.Duplicates++
			r.logger.Debug("entry already known", "link", e.Link)
		}

		section.Entries = append(section.Entries, e)
	}
	res.Entries += len(section.Entries)

	return section, nil
}
