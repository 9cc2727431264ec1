package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/ports"
)

// FileSource replays an article dump (YAML or JSON list of RawArticle).
// The file is re-read on every search so dumps can be swapped between runs.
type FileSource struct {
	name   string
	path   string
	logger *slog.Logger
}

var _ ports.ArticleSource = (*FileSource)(nil)

// NewFileSource wires a dump file under the given source name.
func NewFileSource(name, path string, log *slog.Logger) *FileSource {
	if log != nil {
		log = log.With("source", name)
	}
	return &FileSource{name: name, path: path, logger: log}
}

// Name identifies the source inside the registry.
func (s *FileSource) Name() string {
	return s.name
}

// SearchArticles returns articles published on or after fromDate that mention areaName.
// The query is not interpreted; dumps are expected to be pre-scoped.
func (s *FileSource) SearchArticles(ctx context.Context, query, areaName string, fromDate time.Time) ([]domain.RawArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	articles, err := s.load()
	if err != nil {
		return nil, err
	}

	results := make([]domain.RawArticle, 0, len(articles))
	for _, article := range articles {
		if !fromDate.IsZero() && article.PublishDate.Before(fromDate) {
			continue
		}
		if !mentionsArea(article, areaName) {
			continue
		}
		if article.Source == "" {
			article.Source = s.name
		}
		results = append(results, article)
	}

	s.debug("file source searched", "query", query, "area", areaName, "loaded", len(articles), "matched", len(results))
	return results, ctx.Err()
}

func (s *FileSource) load() ([]domain.RawArticle, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read dump %s: %w", s.path, err)
	}

	var articles []domain.RawArticle
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		err = json.Unmarshal(raw, &articles)
	} else {
		err = yaml.Unmarshal(raw, &articles)
	}
	if err != nil {
		return nil, fmt.Errorf("parse dump %s: %w", s.path, err)
	}
	return articles, nil
}

func (s *FileSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
