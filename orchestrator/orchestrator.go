package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"remarknews/config"
	"remarknews/delivery"
	"remarknews/logger"
	"remarknews/render"
	"remarknews/summarizer"
	"remarknews/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// FeedProcessor returns the fresh, extracted articles of one feed.
type FeedProcessor interface {
	ProcessFeed(ctx context.Context, feedURL string, windowHours int) []*types.Article
}

// WeatherSource provides the forecast shown at the top of each document.
type WeatherSource interface {
	Today(ctx context.Context) (*types.WeatherSnapshot, error)
}

// RendererFactory returns the renderer for a format.
type RendererFactory func(format string) (render.Renderer, error)

// DelivererFactory builds the deliverer for a run dated date. A nil
// Deliverer means rendered files stay on disk.
type DelivererFactory func(ctx context.Context, date time.Time) (delivery.Deliverer, error)

// Components are the collaborators of a Runner. Fetcher and Renderer are
// required; the rest are optional.
type Components struct {
	Fetcher    FeedProcessor
	Summarizer summarizer.Summarizer
	Weather    WeatherSource
	Renderer   render.Renderer
	// NewRenderer lets Override switch formats.
	NewRenderer RendererFactory
	Deliverer   DelivererFactory
	Now         func() time.Time
}

// Runner executes digest runs: fetch every source, summarize, render one
// document per source and deliver the files.
type Runner struct {
	cfg *config.Config
	c   Components
}

func NewRunner(cfg *config.Config, c Components) *Runner {
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Runner{cfg: cfg, c: c}
}

// Config returns the configuration the runner was built with.
func (r *Runner) Config() *config.Config { return r.cfg }

// Override returns a runner sharing r's components with a different format
// or freshness window. Zero values keep r's settings.
func (r *Runner) Override(format string, hours int) (*Runner, error) {
	if hours < 0 {
		return nil, fmt.Errorf("freshness window must be positive, got %d", hours)
	}
	cfg := *r.cfg
	c := r.c
	if hours > 0 {
		cfg.FreshnessHours = hours
	}
	if format != "" && format != c.Renderer.Format() {
		if c.NewRenderer == nil {
			return nil, fmt.Errorf("runner cannot switch format to %q", format)
		}
		rr, err := c.NewRenderer(format)
		if err != nil {
			return nil, err
		}
		c.Renderer = rr
		cfg.Format = format
	}
	return &Runner{cfg: &cfg, c: c}, nil
}

// RunOnce executes a single end-to-end cycle under a fresh run id.
func (r *Runner) RunOnce(ctx context.Context) (*RunReport, error) {
	return r.Run(ctx, uuid.NewString())
}

// Run executes one cycle identified by id. Per-source and per-file failures
// are recorded in the report; only setup failures and an expired run
// deadline are returned as errors.
func (r *Runner) Run(ctx context.Context, id string) (*RunReport, error) {
	report := &RunReport{
		ID:        id,
		StartedAt: r.c.Now(),
		Format:    r.c.Renderer.Format(),
	}
	date := report.StartedAt

	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", r.cfg.OutputDir, err)
	}

	slog.Info("digest run started", "run_id", report.ID, "sources", len(r.cfg.EnabledSources()), "format", report.Format)

	var weather *types.WeatherSnapshot
	if r.c.Weather != nil {
		w, err := r.c.Weather.Today(ctx)
		if err != nil {
			slog.Warn("weather unavailable", "stage", logger.StageWeather, "error", err)
		} else {
			weather = w
		}
	}

	sources := r.cfg.EnabledSources()
	fetched := r.fetchAll(ctx, sources)

	for i, src := range sources {
		articles := fetched[i]
		sr := SourceReport{Source: src.Name, FeedURL: src.URL, Articles: len(articles)}
		for _, a := range articles {
			if a.ExtractionError != "" {
				sr.ExtractionFailures++
			}
		}

		if len(articles) == 0 {
			slog.Info("No articles found for " + src.Name)
			report.Sources = append(report.Sources, sr)
			continue
		}

		if r.c.Summarizer != nil {
			sr.Summarized = summarizer.Annotate(ctx, r.c.Summarizer, articles, r.cfg.Concurrency.Articles)
		}

		doc := render.Document{
			Title:    r.cfg.Render.Title,
			Date:     date,
			Weather:  weather,
			Sections: []render.Section{{Source: src.Name, Articles: articles}},
		}
		path, err := r.c.Renderer.Render(ctx, doc, render.OutputBase(r.cfg.OutputDir, src.Name, date))
		if err != nil {
			slog.Error("render failed", "stage", logger.StageRender, "url", src.URL, "source", src.Name, "error", err)
			sr.Error = err.Error()
			report.Sources = append(report.Sources, sr)
			continue
		}
		sr.File = path
		report.Files = append(report.Files, path)
		report.Sources = append(report.Sources, sr)
		slog.Info("document written", "source", src.Name, "file", path, "articles", len(articles))
	}

	r.deliverAll(ctx, date, report)

	report.FinishedAt = r.c.Now()
	slog.Info("digest run finished", "run_id", report.ID, "files", len(report.Files),
		"delivery_failures", len(report.DeliveryFailures), "elapsed", report.Elapsed().Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run %s interrupted: %w", report.ID, err)
	}
	return report, nil
}

// fetchAll processes the sources concurrently; results keep source order.
func (r *Runner) fetchAll(ctx context.Context, sources []types.FeedSource) [][]*types.Article {
	results := make([][]*types.Article, len(sources))

	var g errgroup.Group
	g.SetLimit(max(r.cfg.Concurrency.Feeds, 1))
	for i, src := range sources {
		g.Go(func() error {
			articles := r.c.Fetcher.ProcessFeed(ctx, src.URL, r.cfg.FreshnessHours)
			for _, a := range articles {
				a.Source = src.Name
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) deliverAll(ctx context.Context, date time.Time, report *RunReport) {
	if r.c.Deliverer == nil || len(report.Files) == 0 {
		return
	}
	d, err := r.c.Deliverer(ctx, date)
	if err != nil {
		slog.Error("delivery unavailable", "stage", logger.StageDeliver, "error", err)
		for _, f := range report.Files {
			report.DeliveryFailures = append(report.DeliveryFailures, DeliveryFailure{File: f, Error: err.Error()})
		}
		return
	}
	if d == nil {
		return
	}
	report.Target = d.Name()

	for _, f := range report.Files {
		if err := d.Deliver(ctx, f); err != nil {
			slog.Error("delivery failed", "stage", logger.StageDeliver, "target", d.Name(), "file", f, "error", err)
			report.DeliveryFailures = append(report.DeliveryFailures, DeliveryFailure{File: f, Error: err.Error()})
			continue
		}
		report.Delivered++
	}
}
