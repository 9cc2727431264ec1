package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/ports"
)

const (
	defaultPageSize = 50
	defaultMaxPages = 5
)

var listingDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2 Jan 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ListingSelectors locate article fields on a publisher's search/listing page.
type ListingSelectors struct {
	Item    string
	Title   string
	Link    string
	Summary string
	// Date is read from the datetime attribute when present, otherwise from text.
	Date string
}

// DefaultSelectors match the common <article><h2><a/></h2><p/><time/></article> layout.
func DefaultSelectors() ListingSelectors {
	return ListingSelectors{
		Item:    "article",
		Title:   "h2, h3",
		Link:    "a[href]",
		Summary: "p",
		Date:    "time",
	}
}

// ListingSource scrapes a newest-first listing page, paging with skip/show parameters
// until it reaches articles older than the requested window.
type ListingSource struct {
	name     string
	baseURL  string
	sel      ListingSelectors
	client   *http.Client
	pageSize int
	maxPages int
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*ListingSource)(nil)

// NewListingSource wires an HTTP client; a nil client gets a 20s timeout.
func NewListingSource(name, baseURL string, sel ListingSelectors, client *http.Client, log *slog.Logger) *ListingSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if log != nil {
		log = log.With("source", name)
	}
	return &ListingSource{
		name:     name,
		baseURL:  baseURL,
		sel:      sel,
		client:   client,
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
		logger:   log,
	}
}

// Name identifies the source inside the registry.
func (s *ListingSource) Name() string {
	return s.name
}

// SearchArticles walks listing pages for query and keeps articles mentioning areaName.
func (s *ListingSource) SearchArticles(ctx context.Context, query, areaName string, fromDate time.Time) ([]domain.RawArticle, error) {
	results := make([]domain.RawArticle, 0)
	seen := map[string]struct{}{}

	for page := 0; page < s.maxPages; page++ {
		pageURL, err := buildPageURL(s.baseURL, query, page*s.pageSize, s.pageSize)
		if err != nil {
			return nil, err
		}

		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		pageArticles, shouldContinue := s.extractArticles(doc, pageURL, fromDate)
		for _, article := range pageArticles {
			if _, ok := seen[article.URL]; ok {
				continue
			}
			seen[article.URL] = struct{}{}
			if mentionsArea(article, areaName) {
				results = append(results, article)
			}
		}

		if !shouldContinue {
			break
		}
	}

	s.debug("listing source searched", "query", query, "area", areaName, "matched", len(results))
	return results, nil
}

func (s *ListingSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "DevelopmentScanner/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", s.name, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (s *ListingSource) extractArticles(doc *goquery.Document, pageURL string, fromDate time.Time) ([]domain.RawArticle, bool) {
	var (
		collected    []domain.RawArticle
		continueScan = true
		processed    int
	)

	base, _ := url.Parse(pageURL)

	doc.Find(s.sel.Item).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		processed++

		article, ok := s.parseItem(item, base)
		if !ok {
			return true
		}
		if !fromDate.IsZero() && article.PublishDate.Before(fromDate) {
			continueScan = false
			return false
		}
		collected = append(collected, article)
		return true
	})

	if processed < s.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

// parseItem skips entries without a link or a readable date.
func (s *ListingSource) parseItem(item *goquery.Selection, base *url.URL) (domain.RawArticle, bool) {
	link := item.Find(s.sel.Link).First()
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.RawArticle{}, false
	}
	if base != nil {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			href = base.ResolveReference(ref).String()
		}
	}

	title := strings.TrimSpace(item.Find(s.sel.Title).First().Text())
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}

	var summary []string
	item.Find(s.sel.Summary).Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			summary = append(summary, text)
		}
	})

	dateSel := item.Find(s.sel.Date).First()
	dateText, _ := dateSel.Attr("datetime")
	if dateText == "" {
		dateText = dateSel.Text()
	}
	published, ok := parseListingDate(dateText)
	if !ok {
		return domain.RawArticle{}, false
	}

	return domain.RawArticle{
		Title:       title,
		Content:     strings.Join(summary, "\n"),
		URL:         href,
		Source:      s.name,
		PublishDate: published,
	}, true
}

func parseListingDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range listingDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func buildPageURL(base, query string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	q := parsed.Query()
	if query != "" {
		q.Set("q", query)
	}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func (s *ListingSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
