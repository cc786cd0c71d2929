// Package crawler provides concrete internal/usecase/crawl.SourceAdapter
// implementations. These are deliberately generic (one RSS adapter, one
// plain-HTML-listing adapter) rather than per-source scraping rules, which
// are out of scope per spec section 1.
package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/resilience/circuitbreaker"
	"newsqueue/internal/resilience/retry"
)

// RSSAdapter fetches a single RSS/Atom feed with circuit-breaker and retry
// protection, mirroring the reliability pattern used for outbound chat
// dispatch.
type RSSAdapter struct {
	platform       string
	feedURL        string
	category       string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewRSSAdapter builds an adapter for a single feed URL. platform becomes
// the article's platform tag and the source name reported in crawl.Outcome.
func NewRSSAdapter(platform, feedURL, category string, client *http.Client) *RSSAdapter {
	return &RSSAdapter{
		platform:       platform,
		feedURL:        feedURL,
		category:       category,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

func (a *RSSAdapter) Name() string { return a.platform }

func (a *RSSAdapter) Fetch(ctx context.Context) ([]*entity.Article, error) {
	var articles []*entity.Article

	err := retry.WithBackoff(ctx, a.retryConfig, func() error {
		result, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doFetch(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("platform", a.platform), slog.String("url", a.feedURL))
			}
			return err
		}
		articles = result.([]*entity.Article)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (a *RSSAdapter) doFetch(ctx context.Context) ([]*entity.Article, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "newsqueue-crawler"
	fp.Client = a.client

	feed, err := fp.ParseURLWithContext(a.feedURL, ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	articles := make([]*entity.Article, 0, len(feed.Items))
	for _, it := range feed.Items {
		var publishedAt *time.Time
		if it.PublishedParsed != nil {
			publishedAt = it.PublishedParsed
		}
		content := it.Content
		if content == "" {
			content = it.Description
		}

		art := &entity.Article{
			Platform:    a.platform,
			ArticleID:   it.GUID,
			URL:         it.Link,
			Title:       it.Title,
			Content:     content,
			Category:    a.category,
			PublishedAt: publishedAt,
			CollectedAt: now,
		}
		if it.Author != nil {
			art.Author = it.Author.Name
		}
		if err := art.Validate(now); err != nil {
			slog.Warn("skipping invalid feed item", slog.String("platform", a.platform), slog.String("error", err.Error()))
			continue
		}
		articles = append(articles, art)
	}
	return articles, nil
}
