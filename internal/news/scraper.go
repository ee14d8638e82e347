// Package news scrapes recent headlines as a fallback when the primary news
// fetch fails or returns nothing.
package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper collects headlines from Google News search results.
type Scraper struct {
	timeout time.Duration
}

// NewScraper creates a scraper with the given per-request timeout.
func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{timeout: timeout}
}

// Headlines searches Google News for the query and returns up to limit
// headline items. Scraped items carry no citation sources.
func (s *Scraper) Headlines(ctx context.Context, query string, limit int) ([]types.NewsItem, error) {
	if limit <= 0 {
		limit = 5
	}

	items := []types.NewsItem{}

	c := colly.NewCollector(
		colly.AllowedDomains("news.google.com", "www.google.com"),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	c.OnHTML("article", func(e *colly.HTMLElement) {
		if len(items) >= limit {
			return
		}

		title := strings.TrimSpace(e.ChildText("h3, h4"))
		link := e.ChildAttr("a", "href")
		if title == "" || link == "" {
			return
		}

		// Google News uses relative redirect links
		if strings.HasPrefix(link, "./articles/") {
			link = "https://news.google.com" + link[1:]
		}

		item := types.NewsItem{
			Title:  title,
			Link:   link,
			Source: "Google News",
		}
		if sel := e.DOM.Find("time"); sel.Length() > 0 {
			item.Date = headlineDate(sel)
		}
		items = append(items, item)
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Headline scraping error", err, "url", r.Request.URL.String())
	})

	searchQuery := url.QueryEscape(query + " stock news")
	searchURL := fmt.Sprintf("https://news.google.com/search?q=%s&hl=en-US&gl=US&ceid=US:en", searchQuery)

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to scrape headlines: %w", err)
	}
	c.Wait()

	logger.Debug(ctx, "Headline scraping completed", "query", query, "items", len(items))
	return items, nil
}

// headlineDate prefers the machine-readable datetime attribute over the
// relative display text ("3 hours ago").
func headlineDate(sel *goquery.Selection) string {
	if dt, ok := sel.First().Attr("datetime"); ok && dt != "" {
		return dt
	}
	return strings.TrimSpace(sel.First().Text())
}
