// Package sources holds the ArticleSource implementations the crawler fans out to.
package sources

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"DevelopmentScanner/internal/config"
	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/lexicon"
	"DevelopmentScanner/internal/ports"
)

const (
	KindFile    = "file"
	KindListing = "listing"
)

// Registry keeps a mapping from source names to their implementations.
// All returns sources in registration order.
type Registry struct {
	sources map[string]ports.ArticleSource
	order   []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.ArticleSource{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source ports.ArticleSource) {
	if r.sources == nil {
		r.sources = map[string]ports.ArticleSource{}
	}
	name := source.Name()
	if _, exists := r.sources[name]; !exists {
		r.order = append(r.order, name)
	}
	r.sources[name] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.ArticleSource, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// All lists every registered source.
func (r *Registry) All() []ports.ArticleSource {
	out := make([]ports.ArticleSource, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}

// Len reports how many sources are registered.
func (r *Registry) Len() int {
	return len(r.order)
}

// FromConfig builds a registry from config-defined sources.
func FromConfig(cfgs []config.SourceConfig, client *http.Client, log *slog.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("source of kind %q has no name", cfg.Kind)
		}
		switch strings.ToLower(cfg.Kind) {
		case KindFile, "":
			if cfg.Path == "" {
				return nil, fmt.Errorf("source %s: path is required", cfg.Name)
			}
			reg.Register(NewFileSource(cfg.Name, cfg.Path, log))
		case KindListing:
			if cfg.Path == "" {
				return nil, fmt.Errorf("source %s: listing url is required", cfg.Name)
			}
			src := NewListingSource(cfg.Name, cfg.Path, selectorsFromOptions(cfg.Options), client, log)
			if v, err := strconv.Atoi(cfg.Options["pageSize"]); err == nil && v > 0 {
				src.pageSize = v
			}
			if v, err := strconv.Atoi(cfg.Options["maxPages"]); err == nil && v > 0 {
				src.maxPages = v
			}
			reg.Register(src)
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", cfg.Name, cfg.Kind)
		}
	}
	return reg, nil
}

func selectorsFromOptions(opts map[string]string) ListingSelectors {
	sel := DefaultSelectors()
	if v := opts["item"]; v != "" {
		sel.Item = v
	}
	if v := opts["title"]; v != "" {
		sel.Title = v
	}
	if v := opts["link"]; v != "" {
		sel.Link = v
	}
	if v := opts["summary"]; v != "" {
		sel.Summary = v
	}
	if v := opts["date"]; v != "" {
		sel.Date = v
	}
	return sel
}

// mentionsArea reports whether the article names the area. An empty area matches everything.
func mentionsArea(article domain.RawArticle, areaName string) bool {
	area := lexicon.Normalize(areaName)
	if area == "" {
		return true
	}
	return strings.Contains(lexicon.Normalize(article.Text()), area)
}
