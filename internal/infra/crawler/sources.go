package crawler

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"newsqueue/internal/usecase/crawl"
)

// manifest is the on-disk shape of sources.yaml: a flat list of adapters the
// Crawler Fan-out should run each cycle.
type manifest struct {
	Sources []sourceSpec `yaml:"sources"`
}

type sourceSpec struct {
	Platform string `yaml:"platform"`
	Category string `yaml:"category"`
	Kind     string `yaml:"kind"` // "rss" or "html"
	URL      string `yaml:"url"`

	// Selectors is only required when Kind is "html".
	Selectors struct {
		Item  string `yaml:"item"`
		Title string `yaml:"title"`
		Link  string `yaml:"link"`
	} `yaml:"selectors"`
}

// LoadSources reads a sources.yaml manifest and builds one crawl.SourceAdapter
// per entry. client is shared across every adapter built from the manifest.
func LoadSources(path string, client *http.Client) ([]crawl.SourceAdapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse sources manifest: %w", err)
	}

	adapters := make([]crawl.SourceAdapter, 0, len(m.Sources))
	for i, s := range m.Sources {
		if s.Platform == "" {
			return nil, fmt.Errorf("sources manifest entry %d: platform is required", i)
		}
		if s.URL == "" {
			return nil, fmt.Errorf("sources manifest entry %d (%s): url is required", i, s.Platform)
		}

		switch s.Kind {
		case "rss", "":
			adapters = append(adapters, NewRSSAdapter(s.Platform, s.URL, s.Category, client))
		case "html":
			if s.Selectors.Item == "" || s.Selectors.Title == "" || s.Selectors.Link == "" {
				return nil, fmt.Errorf("sources manifest entry %d (%s): html adapters require item, title and link selectors", i, s.Platform)
			}
			adapters = append(adapters, NewHTMLAdapter(s.Platform, s.URL, s.Category, HTMLSelectors{
				Item:  s.Selectors.Item,
				Title: s.Selectors.Title,
				Link:  s.Selectors.Link,
			}, client))
		default:
			return nil, fmt.Errorf("sources manifest entry %d (%s): unknown kind %q", i, s.Platform, s.Kind)
		}
	}
	return adapters, nil
}

// DefaultHTTPClient returns the HTTP client shared by manifest-built adapters.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
