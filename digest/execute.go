package digest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"github.com/scipunch/feedwiki/config"
	"github.com/scipunch/feedwiki/export"
	"github.com/scipunch/feedwiki/filter"
	"github.com/scipunch/feedwiki/index"
	"github.com/scipunch/feedwiki/store"
)

// ErrLocked is returned when another run holds the output directory
var ErrLocked = errors.New("another run is in progress")

// Execute performs a complete run: it takes the run lock, opens the store,
// runs, optionally exports the feed and releases everything again.
func Execute(ctx context.Context, conf config.Config, opts ...Option) (Result, error) {
	entryFilter, err := filter.New(conf.Filter)
	if err != nil {
		return Result{}, fmt.Errorf("invalid filter config: %w", err)
	}

	if err := os.MkdirAll(conf.OutputDirectory, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create output directory at '%s' with %w", conf.OutputDirectory, err)
	}

	lock := flock.New(conf.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, fmt.Errorf("failed to acquire lock '%s' with %w", conf.LockPath(), err)
	}
	if !locked {
		return Result{}, fmt.Errorf("%w: %s", ErrLocked, conf.LockPath())
	}
	defer lock.Unlock()

	st, err := store.Open(ctx, conf.DatabasePath)
	if err != nil {
		return Result{}, err
	}
	defer st.Close()

	runner := New(conf, st, append([]Option{WithFilter(entryFilter)}, opts...)...)
	res, err := runner.Run(ctx)
	if err != nil {
		return res, err
	}

	if conf.Export.Enabled {
		err := export.Write(ctx, conf.ExportPath(), st, export.Options{
			Title:       strings.TrimSpace(strings.TrimLeft(conf.Index.Title, "#")),
			Link:        index.FileName,
			Description: conf.Index.Description,
			Format:      conf.Export.Format,
			Limit:       conf.Export.Limit,
		})
		if err != nil {
			return res, err
		}
		runner.logger.Info("feed exported", "path", conf.ExportPath(), "format", conf.Export.Format)
	}

	return res, nil
}
