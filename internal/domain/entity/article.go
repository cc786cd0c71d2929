// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article and QueueItem, along with
// their validation rules and domain-specific errors.
package entity

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Article represents a normalized news item collected from a source platform.
// It is never mutated after insertion into the Article Store.
type Article struct {
	ID          int64
	UniqueID    string
	Platform    string
	ArticleID   string
	URL         string
	Title       string
	Content     string
	Author      string
	Category    string
	Metadata    map[string]string
	PublishedAt *time.Time
	CollectedAt time.Time
}

// DeriveUniqueID computes the business key used for dedup: "{platform}_{article_id}"
// when an article_id is present, otherwise the canonicalized URL.
func DeriveUniqueID(platform, articleID, rawURL string) (string, error) {
	if articleID != "" {
		if platform == "" {
			return "", &ValidationError{Field: "platform", Message: "required when article_id is set"}
		}
		return fmt.Sprintf("%s_%s", platform, articleID), nil
	}
	canonical, err := CanonicalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	return canonical, nil
}

// CanonicalizeURL lower-cases the scheme/host and strips a trailing slash so
// that the same article reached via trivially different URLs collapses to
// one unique_id.
func CanonicalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &ValidationError{Field: "url", Message: "not a valid URL"}
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	return u.String(), nil
}

// Validate checks the invariants required before an Article may be inserted:
// platform and title are present, url passes ValidateURL, and collected_at is
// not in the future. An empty unique_id is derived from platform, article id
// and url, and a zero collected_at is set to now.
func (a *Article) Validate(now time.Time) error {
	if a.Platform == "" {
		return &ValidationError{Field: "platform", Message: "required"}
	}
	if a.Title == "" {
		return &ValidationError{Field: "title", Message: "required"}
	}
	if err := ValidateURL(a.URL); err != nil {
		return err
	}
	if a.UniqueID == "" {
		uid, err := DeriveUniqueID(a.Platform, a.ArticleID, a.URL)
		if err != nil {
			return err
		}
		a.UniqueID = uid
	}
	if a.CollectedAt.IsZero() {
		a.CollectedAt = now
	}
	if a.CollectedAt.After(now) {
		return &ValidationError{Field: "collected_at", Message: "must not be in the future"}
	}
	return nil
}
