package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"remarknews/common"
	"remarknews/config"
	"remarknews/logger"
	"remarknews/types"

	"golang.org/x/sync/errgroup"
)

// SummaryHeader introduces the summary block prepended to an article.
const SummaryHeader = "AI Summary:"

const prompt = `INSTRUCTION: Summarize the following article in 3-5 bullet points.
Each bullet point should be a single sentence. Do not use nested bullet points or sub-points.
Start each bullet point with a dash (-) followed by a space.
Only consider the article text provided below and nothing else.

ARTICLE TEXT:
%s

SUMMARY:`

// Summarizer turns article text into dash-prefixed bullet lines.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// New returns the summarizer for the configured provider.
func New(cfg config.SummaryConfig, client *common.HTTPClient) (Summarizer, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllama(client, cfg.BaseURL, cfg.Model), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai summarizer requires OPENAI_API_KEY")
		}
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic summarizer requires ANTHROPIC_API_KEY")
		}
		return NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Provider)
	}
}

func buildPrompt(text string) string {
	return fmt.Sprintf(prompt, text)
}

// FormatBulletPoints makes every non-empty line start with "- ".
func FormatBulletPoints(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "- "):
		case strings.HasPrefix(line, "-"), strings.HasPrefix(line, "*"), strings.HasPrefix(line, "•"):
			_, size := utf8.DecodeRuneInString(line)
			line = "- " + strings.TrimSpace(line[size:])
		default:
			line = "- " + line
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// SummaryBlock wraps bullets in the block prepended to an article's content.
func SummaryBlock(bullets string) types.TextBlock {
	return types.TextBlock{Text: SummaryHeader + types.ParagraphSeparator + bullets}
}

// Annotate summarizes every article with text content and prepends the
// result. Failures leave the article unchanged. It returns how many
// articles were summarized.
func Annotate(ctx context.Context, s Summarizer, articles []*types.Article, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	done := make([]bool, len(articles))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, a := range articles {
		text := strings.TrimSpace(a.TextContent())
		if text == "" {
			continue
		}
		g.Go(func() error {
			summary, err := s.Summarize(ctx, text)
			if err != nil {
				slog.Warn("summarization failed", "stage", logger.StageSummarize, "url", a.Link, "error", err)
				return nil
			}
			bullets := FormatBulletPoints(summary)
			if bullets == "" {
				return nil
			}
			a.Prepend(SummaryBlock(bullets))
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range done {
		if ok {
			n++
		}
	}
	return n
}
