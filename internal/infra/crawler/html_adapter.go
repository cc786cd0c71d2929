package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"newsqueue/internal/domain/entity"
	"newsqueue/internal/resilience/circuitbreaker"
	"newsqueue/internal/resilience/retry"
)

const maxHTMLBodySize = 10 * 1024 * 1024 // 10MB

// HTMLSelectors names the CSS selectors used to extract a listing of
// articles from a single HTML page. This stays deliberately generic (no
// per-source parsing rules) per spec section 1.
type HTMLSelectors struct {
	Item  string // selector matching one article element
	Title string // selector, relative to Item, for the headline text
	Link  string // selector, relative to Item, for the <a href>
}

// HTMLAdapter fetches a single HTML listing page and extracts articles with
// goquery, carrying the same circuit-breaker/retry protection as RSSAdapter.
type HTMLAdapter struct {
	platform       string
	pageURL        string
	category       string
	selectors      HTMLSelectors
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewHTMLAdapter(platform, pageURL, category string, selectors HTMLSelectors, client *http.Client) *HTMLAdapter {
	return &HTMLAdapter{
		platform:       platform,
		pageURL:        pageURL,
		category:       category,
		selectors:      selectors,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		retryConfig:    retry.WebScraperConfig(),
	}
}

func (a *HTMLAdapter) Name() string { return a.platform }

func (a *HTMLAdapter) Fetch(ctx context.Context) ([]*entity.Article, error) {
	var articles []*entity.Article

	err := retry.WithBackoff(ctx, a.retryConfig, func() error {
		result, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doFetch(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("html scraper circuit breaker open, request rejected",
					slog.String("platform", a.platform), slog.String("url", a.pageURL))
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

func (a *HTMLAdapter) doFetch(ctx context.Context) ([]*entity.Article, error) {
	if err := entity.ValidateURL(a.pageURL); err != nil {
		return nil, fmt.Errorf("URL validation failed: %w", err)
	}

	doc, err := a.fetchHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch HTML failed: %w", err)
	}

	now := time.Now()
	base, err := url.Parse(a.pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	var articles []*entity.Article
	doc.Find(a.selectors.Item).Each(func(i int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find(a.selectors.Title).Text())
		if title == "" {
			return
		}
		href, ok := item.Find(a.selectors.Link).Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			slog.Debug("skipping item with unresolvable link", slog.Int("index", i))
			return
		}

		art := &entity.Article{
			Platform:    a.platform,
			URL:         resolved.String(),
			Title:       title,
			Category:    a.category,
			CollectedAt: now,
		}
		if err := art.Validate(now); err != nil {
			slog.Debug("skipping invalid html item", slog.String("platform", a.platform), slog.String("error", err.Error()))
			return
		}
		articles = append(articles, art)
	})
	return articles, nil
}

func (a *HTMLAdapter) fetchHTML(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "newsqueue-crawler/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected status: %s", resp.Status)}
	}

	limited := io.LimitReader(resp.Body, maxHTMLBodySize)
	doc, err := goquery.NewDocumentFromReader(limited)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}
