package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"remarknews/config"
	"remarknews/orchestrator"
	"remarknews/types"

	"github.com/spf13/cobra"
)

func (a *app) previewCmd() *cobra.Command {
	var hours int
	cmd := &cobra.Command{
		Use:   "preview <preset|url>",
		Short: "Print the fresh, extracted items of one feed as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if hours <= 0 {
				hours = a.cfg.FreshnessHours
			}
			src := config.ResolveFeed(args[0])
			client := orchestrator.NewHTTPClient(a.cfg)
			fetcher := orchestrator.NewFetcher(a.cfg, client)

			articles := fetcher.ProcessFeed(cmd.Context(), src.URL, hours)
			for _, art := range articles {
				art.Source = src.Name
			}
			return writeJSON(cmd.OutOrStdout(), types.FeedResult{
				FeedURL:      src.URL,
				FetchedAt:    time.Now().UTC(),
				WindowHours:  hours,
				ArticleCount: len(articles),
				Articles:     articles,
			})
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 0, "freshness window in hours (default from config)")
	return cmd
}

type extractOutput struct {
	URL      string               `json:"url"`
	Blocks   []types.ContentBlock `json:"blocks"`
	Byline   string               `json:"byline,omitempty"`
	Excerpt  string               `json:"excerpt,omitempty"`
	SiteName string               `json:"site_name,omitempty"`
}

func (a *app) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>",
		Short: "Print the content blocks of one article page as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := orchestrator.NewHTTPClient(a.cfg)
			extractor := orchestrator.NewExtractor(a.cfg, client)

			res, err := extractor.ExtractArticle(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("extracting %s: %w", args[0], err)
			}
			return writeJSON(cmd.OutOrStdout(), extractOutput{
				URL:      args[0],
				Blocks:   res.Blocks,
				Byline:   res.Byline,
				Excerpt:  res.Excerpt,
				SiteName: res.SiteName,
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
