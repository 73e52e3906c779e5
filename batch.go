package video_batch

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alanbriolat/video-batch/generic"
	"github.com/alanbriolat/video-batch/internal/sync_"
)

// LinkResolver is satisfied by *Resolver.
type LinkResolver interface {
	Resolve(ctx context.Context, link string) (*ResolvedMedia, error)
}

// MediaFetcher is satisfied by *Fetcher.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string, destination string) error
}

type LinkStatus string

const (
	LinkStatusPending       LinkStatus = "pending"
	LinkStatusSkipped       LinkStatus = "skipped"
	LinkStatusResolving     LinkStatus = "resolving"
	LinkStatusResolveFailed LinkStatus = "resolve_failed"
	LinkStatusFetching      LinkStatus = "fetching"
	LinkStatusSucceeded     LinkStatus = "succeeded"
	LinkStatusFetchFailed   LinkStatus = "fetch_failed"
)

var failedStatuses = generic.NewSet(
	LinkStatusResolveFailed,
	LinkStatusFetchFailed,
)

// IsFailed returns true if the status is one that ends up in Report.Failures.
func (s LinkStatus) IsFailed() bool {
	return failedStatuses.Contains(s)
}

// Outcome is what happened to one link during a run.
type Outcome struct {
	// Position of the link in the (possibly limited) input.
	Index   int
	Link    string
	VideoID string
	Path    string
	Status  LinkStatus
	// Human-readable reason, for failed links only.
	Reason string
	// The resolved media, if resolution happened and succeeded.
	Media *ResolvedMedia
}

type Failure struct {
	Link   string
	Reason string
	index  int
}

// Report summarises a run. It's only modified by Batch.Run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration
	Total     int
	Succeeded int
	Skipped   int
	// Failed links in input order.
	Failures []Failure
}

func (r *Report) Failed() int {
	return len(r.Failures)
}

func (r *Report) add(o Outcome) {
	switch o.Status {
	case LinkStatusSucceeded:
		r.Succeeded++
	case LinkStatusSkipped:
		r.Skipped++
	default:
		if o.Status.IsFailed() {
			r.Failures = append(r.Failures, Failure{Link: o.Link, Reason: o.Reason, index: o.Index})
		}
	}
}

// Observer is called with each link's Outcome once it reaches a final status. With more than one worker it may be
// called concurrently.
type Observer func(Outcome)

// Batch resolves and fetches a list of share links into Config.TargetDir, skipping any link whose file is already
// complete.
type Batch struct {
	config   Config
	resolver LinkResolver
	fetcher  MediaFetcher
	storage  Storage
	observer Observer
	paths    sync_.KeyedMutex[string]
}

func NewBatch(config Config, resolver LinkResolver, fetcher MediaFetcher, storage Storage) *Batch {
	if storage == nil {
		storage = LocalStorage{}
	}
	return &Batch{
		config:   config,
		resolver: resolver,
		fetcher:  fetcher,
		storage:  storage,
	}
}

func (b *Batch) WithObserver(observer Observer) *Batch {
	b.observer = observer
	return b
}

// Run processes links in order (or Config.Workers at a time) and returns the Report. A failing link never stops the
// run; the only error before processing starts is failing to create the target directory. If ctx is cancelled, no
// further links are started and the partial Report is returned along with ctx.Err().
func (b *Batch) Run(ctx context.Context, links []string) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := Logger(ctx).Sugar().Named("batch").With("run_id", report.RunID)

	if err := b.storage.MkdirAll(b.config.TargetDir); err != nil {
		return nil, err
	}
	if b.config.Limit > 0 && len(links) > b.config.Limit {
		links = links[:b.config.Limit]
	}
	report.Total = len(links)
	log.Infof("Processing %d links into %s", len(links), b.config.TargetDir)

	acc := sync_.NewMutexed(report)
	record := func(o Outcome) {
		_ = acc.Locked(func(r *Report) error {
			r.add(o)
			return nil
		})
		if b.observer != nil {
			b.observer(o)
		}
	}

	if b.config.Workers <= 1 {
		for i, link := range links {
			if ctx.Err() != nil {
				break
			}
			record(b.process(ctx, log, i, link))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(b.config.Workers)
		for i, link := range links {
			if ctx.Err() != nil {
				break
			}
			i, link := i, link
			g.Go(func() error {
				record(b.process(ctx, log, i, link))
				return nil
			})
		}
		_ = g.Wait()
	}

	report = acc.Get()
	sort.SliceStable(report.Failures, func(i, j int) bool {
		return report.Failures[i].index < report.Failures[j].index
	})
	report.Elapsed = time.Since(report.StartedAt)
	log.Infow("run finished",
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed(),
		"elapsed", report.Elapsed,
	)
	return report, ctx.Err()
}

func (b *Batch) process(ctx context.Context, log *zap.SugaredLogger, index int, link string) Outcome {
	o := Outcome{
		Index:   index,
		Link:    link,
		VideoID: Identify(link),
		Status:  LinkStatusPending,
	}
	log = log.With("link", link, "video_id", o.VideoID)

	path, err := b.config.TargetPath(o.VideoID)
	if err != nil {
		o.Status = LinkStatusFetchFailed
		o.Reason = "download failed: invalid target path: " + err.Error()
		return o
	}
	o.Path = path

	// Held from the skip check until the file is written, so two links with the same ID never fetch at once.
	unlock := b.paths.Lock(path)
	defer unlock()

	if ok, err := isComplete(b.storage, path, b.config.MinValidSize); err != nil {
		log.Warnw("failed to check existing file", "path", path, "error", err)
	} else if ok {
		log.Debugw("already complete, skipping", "path", path)
		o.Status = LinkStatusSkipped
		return o
	}

	o.Status = LinkStatusResolving
	media, err := b.resolver.Resolve(ctx, link)
	if err != nil {
		log.Infow("resolution failed", "error", err)
		o.Status = LinkStatusResolveFailed
		o.Reason = "resolution failed: " + err.Error()
		return o
	}
	o.Media = media

	o.Status = LinkStatusFetching
	if err := b.fetcher.Fetch(ctx, media.URL, path); err != nil {
		log.Infow("download failed", "error", err)
		o.Status = LinkStatusFetchFailed
		o.Reason = "download failed: " + err.Error()
		return o
	}
	log.Infow("downloaded", "path", path, "format", media.Format)
	o.Status = LinkStatusSucceeded
	return o
}
