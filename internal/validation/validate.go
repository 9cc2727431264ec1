// Package validation turns filtered articles into persisted Development
// records: structural checks, location relevance, duplicate lookup,
// transformation and persistence.
package validation

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"DevelopmentScanner/internal/domain"
)

const (
	minContentLength  = 50
	maxTitleLength    = 200
	maxContentLength  = 10000
	staleAfter        = 365 * 24 * time.Hour
	minRelevanceScore = 1
)

// ValidationReport lists blocking errors and advisory warnings for one article.
type ValidationReport struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the article passed every hard check.
func (r ValidationReport) Valid() bool {
	return len(r.Errors) == 0
}

// Validate runs the structural checks against now.
func Validate(a domain.ProcessedArticle, now time.Time) ValidationReport {
	var r ValidationReport

	if strings.TrimSpace(a.Title) == "" {
		r.Errors = append(r.Errors, "title is required")
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(a.Content)); n < minContentLength {
		r.Errors = append(r.Errors, fmt.Sprintf("content too short (%d < %d characters)", n, minContentLength))
	}
	if !validURL(a.URL) {
		r.Errors = append(r.Errors, fmt.Sprintf("invalid url %q", a.URL))
	}
	switch {
	case a.PublishDate.IsZero():
		r.Errors = append(r.Errors, "publish date is missing")
	case a.PublishDate.After(now):
		r.Errors = append(r.Errors, "publish date is in the future")
	}
	if strings.TrimSpace(a.Source) == "" {
		r.Errors = append(r.Errors, "source is required")
	}

	if utf8.RuneCountInString(a.Title) > maxTitleLength {
		r.Warnings = append(r.Warnings, "title longer than 200 characters")
	}
	if utf8.RuneCountInString(a.Content) > maxContentLength {
		r.Warnings = append(r.Warnings, "content longer than 10000 characters")
	}
	if !a.PublishDate.IsZero() && now.Sub(a.PublishDate) > staleAfter {
		r.Warnings = append(r.Warnings, "published more than a year ago")
	}
	if a.RelevanceScore < minRelevanceScore {
		r.Warnings = append(r.Warnings, "low relevance score")
	}
	return r
}

func validURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
