// Package htmlnews provides an HTML-scraping NewsProvider, the secondary
// "raw page" variant of the international/general news source. Most news
// sources are approached through a structured JSON/RSS API; this adapter
// exists for the sources that only expose an HTML listing page.
package htmlnews

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marketaoc/pkg/core/facade"
)

// Scraper fetches a news-listing page and extracts headline items by CSS
// selector.
type Scraper struct {
	URL            string
	ItemSelector   string // e.g. "ul.headlines li a"
	HTTPClient     *http.Client
	SourceName     string
}

// NewScraper builds a Scraper with a sane default HTTP client timeout,
// matching the Facade's own 5s-default suspension-point discipline.
func NewScraper(url, itemSelector, sourceName string) *Scraper {
	return &Scraper{
		URL:          url,
		ItemSelector: itemSelector,
		SourceName:   sourceName,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

// GetLatestNews implements facade.NewsProvider by scraping the configured
// listing page's anchor text as headlines.
func (s *Scraper) GetLatestNews(ctx context.Context, limit int) ([]facade.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("htmlnews: build request failed: %w", err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("htmlnews: fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("htmlnews: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("htmlnews: parse failed: %w", err)
	}

	var items []facade.NewsItem
	doc.Find(s.ItemSelector).Each(func(i int, sel *goquery.Selection) {
		if limit > 0 && len(items) >= limit {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return
		}
		href, _ := sel.Attr("href")
		items = append(items, facade.NewsItem{
			Title:     title,
			Source:    s.SourceName,
			URL:       href,
			Published: time.Now(),
		})
	})

	return items, nil
}
