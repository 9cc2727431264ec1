package validation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DevelopmentScanner/internal/categorize"
	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/filter"
	"DevelopmentScanner/internal/infrastructure/storage"
	"DevelopmentScanner/internal/ports"
)

var (
	fixedNow = time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	tampines = domain.Area{ID: "tampines", Name: "Tampines", District: "East", Latitude: 1.3496, Longitude: 103.9568}
)

func clock() time.Time { return fixedNow }

func schoolArticle() domain.ProcessedArticle {
	return domain.ProcessedArticle{
		RawArticle: domain.RawArticle{
			Title:       "New Primary School Opens in Tampines",
			Content:     "MOE announced that Tampines North Primary School will welcome students from Q3 2027. The S$50 million campus will serve residents and families in the community.",
			URL:         "https://news.example.sg/tampines-school",
			Source:      "Straits Times",
			PublishDate: fixedNow.AddDate(0, 0, -3),
		},
		Keywords:        []string{"primary school"},
		DevelopmentType: domain.TypeSchool,
		RelevanceScore:  6,
	}
}

func mallArticle() domain.ProcessedArticle {
	return domain.ProcessedArticle{
		RawArticle: domain.RawArticle{
			Title:       "Tampines Mall to add new retail wing",
			Content:     "The shopping mall in Tampines will add a retail wing with 40 new stores and a supermarket for residents in the East.",
			URL:         "https://news.example.sg/tampines-mall",
			Source:      "Business Times",
			PublishDate: fixedNow.AddDate(0, 0, -2),
		},
		RelevanceScore: 5,
	}
}

func newProcessor(repo storageRepo, cat Categorizer) *Processor {
	if cat == nil {
		cat = categorize.New(categorize.WithClock(clock))
	}
	return NewProcessor(repo, repo, cat, WithClock(clock))
}

type storageRepo interface {
	ports.AreaRepository
	ports.DevelopmentRepository
}

// flakyRepo injects storage failures on top of the in-memory repository.
type flakyRepo struct {
	*storage.MemoryRepository
	dupErr  error
	failURL string
	seeded  []domain.Development
}

func (f *flakyRepo) FindDuplicateDevelopments(ctx context.Context, areaID, title, sourceURL string) ([]domain.Development, error) {
	if f.dupErr != nil {
		return nil, f.dupErr
	}
	return f.MemoryRepository.FindDuplicateDevelopments(ctx, areaID, title, sourceURL)
}

func (f *flakyRepo) Create(ctx context.Context, dev domain.Development) (domain.Development, error) {
	if f.failURL != "" && dev.SourceURL == f.failURL {
		return domain.Development{}, errors.New("connection reset by peer")
	}
	return f.MemoryRepository.Create(ctx, dev)
}

func (f *flakyRepo) FindAll(ctx context.Context) ([]domain.Development, error) {
	if f.seeded != nil {
		return f.seeded, nil
	}
	return f.MemoryRepository.FindAll(ctx)
}

func (f *flakyRepo) FindByAreaID(ctx context.Context, areaID string) ([]domain.Development, error) {
	if f.seeded == nil {
		return f.MemoryRepository.FindByAreaID(ctx, areaID)
	}
	var out []domain.Development
	for _, d := range f.seeded {
		if d.AreaID == areaID {
			out = append(out, d)
		}
	}
	return out, nil
}

type stubCategorizer struct {
	classification domain.Classification
	entities       domain.EntityExtraction
	panicURL       string
}

func (s stubCategorizer) Classify(a domain.RawArticle) domain.Classification {
	if s.panicURL != "" && a.URL == s.panicURL {
		panic("classifier exploded")
	}
	return s.classification
}

func (s stubCategorizer) ExtractEntities(domain.RawArticle) domain.EntityExtraction {
	return s.entities
}

func (s stubCategorizer) ImpactScore(domain.RawArticle, domain.Classification, domain.EntityExtraction) float64 {
	return 12
}

func TestProcessArticlesTampinesEndToEnd(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository(tampines)
	p := newProcessor(repo, nil)

	res, err := p.ProcessArticles(context.Background(), []domain.ProcessedArticle{schoolArticle()}, tampines.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.ProcessedCount)
	assert.Zero(t, res.SkippedCount)
	assert.Empty(t, res.Errors)
	require.Len(t, res.CreatedDevelopments, 1)

	dev := res.CreatedDevelopments[0]
	assert.NotEmpty(t, dev.ID)
	assert.Equal(t, tampines.ID, dev.AreaID)
	assert.Equal(t, domain.TypeSchool, dev.Type)
	assert.True(t, strings.Contains(dev.Title, "Tampines"), dev.Title)
	assert.GreaterOrEqual(t, dev.ImpactScore, 1.0)
	assert.LessOrEqual(t, dev.ImpactScore, 10.0)
	assert.Contains(t, dev.Description, "MOE")
	assert.Equal(t, "Straits Times", dev.SourcePublisher)
	assert.True(t, dev.DateAnnounced.Equal(schoolArticle().PublishDate))
	require.NotNil(t, dev.ExpectedCompletion)
	assert.Equal(t, 2027, dev.ExpectedCompletion.Year())

	stored, err := repo.FindByAreaID(context.Background(), tampines.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestProcessArticlesKeepsCurrencyFromFilteredText(t *testing.T) {
	t.Parallel()
	engine := categorize.New(categorize.WithClock(clock))
	filtered := filter.New(engine, filter.WithClock(clock)).Process([]domain.RawArticle{{
		Title:       "Office tower worth $500 million planned for Tampines",
		Content:     "Developers announced that an office tower worth $500 million will be built in Tampines Central, adding grade A office space for businesses and the \"Tampines Gateway\" complex for residents in the East.",
		URL:         "https://news.example.sg/tampines-office",
		Source:      "Business Times",
		PublishDate: fixedNow.AddDate(0, 0, -1),
	}}, fixedNow.AddDate(-1, 0, 0))
	require.Len(t, filtered, 1)
	assert.NotContains(t, filtered[0].Content, "$")

	res, err := newProcessor(storage.NewMemoryRepository(tampines), engine).
		ProcessArticles(context.Background(), filtered, tampines.ID)
	require.NoError(t, err)
	require.Len(t, res.CreatedDevelopments, 1)
	dev := res.CreatedDevelopments[0]
	assert.Contains(t, dev.Description, "Estimated value: $500 million.")
	assert.Equal(t, "Tampines Gateway", dev.Title)

	stripped := filtered[0]
	stripped.Plain = domain.RawArticle{}
	bare, err := newProcessor(storage.NewMemoryRepository(tampines), engine).
		ProcessArticles(context.Background(), []domain.ProcessedArticle{stripped}, tampines.ID)
	require.NoError(t, err)
	require.Len(t, bare.CreatedDevelopments, 1)
	assert.NotContains(t, bare.CreatedDevelopments[0].Description, "Estimated value")
	assert.Greater(t, dev.ImpactScore, bare.CreatedDevelopments[0].ImpactScore)
}

func TestProcessArticlesUnknownArea(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository()
	p := newProcessor(repo, nil)

	_, err := p.ProcessArticles(context.Background(), []domain.ProcessedArticle{schoolArticle()}, "atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAreaNotFound)

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProcessArticlesSkipsExistingDevelopments(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository(tampines)
	p := newProcessor(repo, nil)
	ctx := context.Background()

	first, err := p.ProcessArticles(ctx, []domain.ProcessedArticle{schoolArticle()}, tampines.ID)
	require.NoError(t, err)
	require.Len(t, first.CreatedDevelopments, 1)

	second, err := p.ProcessArticles(ctx, []domain.ProcessedArticle{schoolArticle()}, tampines.ID)
	require.NoError(t, err)
	assert.Empty(t, second.CreatedDevelopments)
	assert.Equal(t, 1, second.SkippedCount)
	assert.Empty(t, second.Errors)
}

func TestProcessArticlesDuplicateCheckFailsOpen(t *testing.T) {
	t.Parallel()
	repo := &flakyRepo{MemoryRepository: storage.NewMemoryRepository(tampines), dupErr: errors.New("timeout")}
	p := newProcessor(repo, nil)

	res, err := p.ProcessArticles(context.Background(), []domain.ProcessedArticle{schoolArticle()}, tampines.ID)
	require.NoError(t, err)
	assert.Len(t, res.CreatedDevelopments, 1)
	assert.Empty(t, res.Errors)
}

func TestProcessArticlesIsolatesPersistenceErrors(t *testing.T) {
	t.Parallel()
	repo := &flakyRepo{MemoryRepository: storage.NewMemoryRepository(tampines), failURL: schoolArticle().URL}
	p := newProcessor(repo, nil)

	res, err := p.ProcessArticles(context.Background(), []domain.ProcessedArticle{schoolArticle(), mallArticle()}, tampines.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ProcessedCount)
	require.Len(t, res.CreatedDevelopments, 1)
	assert.Equal(t, domain.TypeShopping, res.CreatedDevelopments[0].Type)
	assert.Equal(t, 1, res.SkippedCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "connection reset by peer")
}

func TestProcessArticlesRejectsUnrelatedLocation(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository(tampines)
	p := newProcessor(repo, nil)

	article := domain.ProcessedArticle{
		RawArticle: domain.RawArticle{
			Title:       "Woodlands primary school gets new sports hall",
			Content:     "MOE said the primary school in Woodlands will receive a sports hall and library for students.",
			URL:         "https://news.example.sg/woodlands-school",
			Source:      "Straits Times",
			PublishDate: fixedNow.AddDate(0, 0, -1),
		},
		RelevanceScore: 4,
	}

	res, err := p.ProcessArticles(context.Background(), []domain.ProcessedArticle{article}, tampines.ID)
	require.NoError(t, err)
	assert.Empty(t, res.CreatedDevelopments)
	assert.Equal(t, 1, res.SkippedCount)
	assert.Empty(t, res.Errors)
}

func TestProcessArticlesSkipsLowConfidence(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository(tampines)
	cat := stubCategorizer{
		classification: domain.Classification{Type: domain.TypeBusiness, Confidence: 0.25, Keywords: []string{}},
		entities:       domain.EntityExtraction{Locations: []string{"Tampines"}},
	}
	p := newProcessor(repo, cat)

	res, err := p.ProcessArticles(context.Background(), []domain.ProcessedArticle{mallArticle()}, tampines.ID)
	require.NoError(t, err)
	assert.Empty(t, res.CreatedDevelopments)
	assert.Equal(t, 1, res.SkippedCount)
	assert.Empty(t, res.Errors)
}

func TestProcessArticlesRecoversPanics(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository(tampines)
	cat := stubCategorizer{
		classification: domain.Classification{Type: domain.TypeShopping, Confidence: 0.9, Keywords: []string{"mall"}},
		entities:       domain.EntityExtraction{Locations: []string{"Tampines"}},
		panicURL:       schoolArticle().URL,
	}
	p := newProcessor(repo, cat)

	res, err := p.ProcessArticles(context.Background(), []domain.ProcessedArticle{schoolArticle(), mallArticle()}, tampines.ID)
	require.NoError(t, err)
	require.Len(t, res.CreatedDevelopments, 1)
	assert.Equal(t, 10.0, res.CreatedDevelopments[0].ImpactScore)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "classifier exploded")
}

func TestProcessArticlesRejectsMalformedArticles(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository(tampines)
	p := newProcessor(repo, nil)

	bad := schoolArticle()
	bad.URL = "not a url"
	bad.Content = "too short"

	res, err := p.ProcessArticles(context.Background(), []domain.ProcessedArticle{bad}, tampines.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "content too short")
	assert.Contains(t, res.Errors[0], "invalid url")
}

func TestProcessBatchIsolatesAreas(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository(tampines)
	p := newProcessor(repo, nil)

	out := p.ProcessBatch(context.Background(), map[string][]domain.ProcessedArticle{
		tampines.ID: {schoolArticle(), mallArticle()},
		"atlantis":  {schoolArticle()},
	})

	assert.Equal(t, 2, out.TotalProcessed)
	assert.Equal(t, 2, out.TotalCreated)
	assert.Zero(t, out.TotalSkipped)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "area atlantis")
	assert.Contains(t, out.Results, tampines.ID)
	assert.NotContains(t, out.Results, "atlantis")
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	repo := &flakyRepo{
		MemoryRepository: storage.NewMemoryRepository(tampines),
		seeded: []domain.Development{
			{AreaID: "tampines", Type: domain.TypeSchool, ImpactScore: 6, CreatedAt: fixedNow.Add(-time.Hour)},
			{AreaID: "tampines", Type: domain.TypeShopping, ImpactScore: 3.5, CreatedAt: fixedNow.Add(-48 * time.Hour)},
			{AreaID: "bedok", Type: domain.TypeSchool, ImpactScore: 2, CreatedAt: fixedNow.Add(-2 * time.Hour)},
		},
	}
	p := newProcessor(repo, nil)

	all, err := p.Statistics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalDevelopments)
	assert.Equal(t, 2, all.ByType[domain.TypeSchool])
	assert.Equal(t, 1, all.ByType[domain.TypeShopping])
	assert.Equal(t, 0, all.ByType[domain.TypeInfrastructure])
	assert.Contains(t, all.ByType, domain.TypeBusiness)
	assert.InDelta(t, 3.83, all.AvgImpactScore, 1e-9)
	assert.Equal(t, 2, all.RecentProcessingCount)

	area, err := p.Statistics(context.Background(), "tampines")
	require.NoError(t, err)
	assert.Equal(t, 2, area.TotalDevelopments)
	assert.InDelta(t, 4.75, area.AvgImpactScore, 1e-9)
	assert.Equal(t, 1, area.RecentProcessingCount)
}

func TestImportDevelopments(t *testing.T) {
	t.Parallel()
	repo := storage.NewMemoryRepository(tampines)
	p := newProcessor(repo, nil)
	ctx := context.Background()

	n, err := p.ImportDevelopments(ctx, []domain.Development{
		{AreaID: "tampines", Type: domain.TypeInfrastructure, Title: "Cross Island Line", SourceURL: "https://x.sg/cri", ImpactScore: 14},
		{AreaID: "tampines", Type: domain.TypeSchool, Title: "Tampines North Primary", SourceURL: "https://x.sg/tnp", ImpactScore: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.ImportDevelopments(ctx, []domain.Development{
		{AreaID: "tampines", Type: domain.TypeInfrastructure, Title: "Cross Island Line", SourceURL: "https://x.sg/cri", ImpactScore: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repo.FindByAreaID(ctx, "tampines")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, d := range stored {
		if d.Title == "Cross Island Line" {
			assert.Equal(t, 8.0, d.ImpactScore)
		}
	}

	_, err = p.ImportDevelopments(ctx, []domain.Development{{AreaID: "tampines", Type: domain.TypeMixed, Title: "x"}})
	assert.ErrorIs(t, err, ErrInvalidDevelopment)

	_, err = p.ImportDevelopments(ctx, []domain.Development{{Type: domain.TypeSchool, Title: "orphan"}})
	assert.ErrorIs(t, err, ErrInvalidDevelopment)
}
