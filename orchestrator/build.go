package orchestrator

import (
	"context"
	"fmt"
	"time"

	"remarknews/common"
	"remarknews/config"
	"remarknews/delivery"
	"remarknews/render"
	"remarknews/rssfeeds"
	"remarknews/summarizer"
	"remarknews/weather"
)

// NewHTTPClient returns the shared outbound client for cfg.
func NewHTTPClient(cfg *config.Config) *common.HTTPClient {
	return common.NewHTTPClient(common.HTTPOptions{
		UserAgent:    cfg.HTTP.UserAgent,
		PerHostRPS:   cfg.HTTP.PerHostRPS,
		PerHostBurst: cfg.HTTP.PerHostBurst,
	})
}

func NewExtractor(cfg *config.Config, client *common.HTTPClient) *rssfeeds.Extractor {
	q := rssfeeds.NewImageQualifier(client, cfg.Extraction.MinImageWidth, cfg.Extraction.MinImageHeight, cfg.HTTP.ImageTimeout)
	return rssfeeds.NewExtractor(client, q, rssfeeds.ExtractorOptions{
		ContentClass:    cfg.ContentClassRegexp(),
		ImageAttributes: cfg.Extraction.ImageAttributes,
		MaxNodes:        cfg.Extraction.MaxNodes,
		PageTimeout:     cfg.HTTP.PageTimeout,
		ImageWorkers:    cfg.Concurrency.Images,
	})
}

func NewFetcher(cfg *config.Config, client *common.HTTPClient) *rssfeeds.Fetcher {
	return rssfeeds.NewFetcher(client, NewExtractor(cfg, client), rssfeeds.FetcherOptions{
		FeedTimeout:    cfg.HTTP.FeedTimeout,
		ArticleWorkers: cfg.Concurrency.Articles,
	})
}

// Build wires the production components for cfg.
func Build(cfg *config.Config) (*Runner, error) {
	client := NewHTTPClient(cfg)

	newRenderer := func(format string) (render.Renderer, error) {
		return render.New(format, render.Options{
			IncludeImages: cfg.Render.IncludeImages,
			Images:        client,
			ImageTimeout:  cfg.HTTP.ImageTimeout,
		})
	}
	renderer, err := newRenderer(cfg.Format)
	if err != nil {
		return nil, err
	}

	c := Components{
		Fetcher:     NewFetcher(cfg, client),
		Renderer:    renderer,
		NewRenderer: newRenderer,
		Deliverer: func(ctx context.Context, date time.Time) (delivery.Deliverer, error) {
			return delivery.New(ctx, cfg.Delivery, date)
		},
	}

	if cfg.Summary.Enabled {
		s, err := summarizer.New(cfg.Summary, client)
		if err != nil {
			return nil, fmt.Errorf("configuring summarizer: %w", err)
		}
		c.Summarizer = s
	}
	if cfg.Weather.Enabled() {
		c.Weather = weather.NewClient(client, cfg.Weather)
	}
	return NewRunner(cfg, c), nil
}
