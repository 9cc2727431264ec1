package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DevelopmentScanner/internal/domain"
)

type fixedScorer float64

func (s fixedScorer) ImpactScore(domain.RawArticle, domain.Classification, domain.EntityExtraction) float64 {
	return float64(s)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		mutate       func(*domain.ProcessedArticle)
		wantError    string
		wantWarning  string
		wantAccepted bool
	}{
		{name: "valid", mutate: func(*domain.ProcessedArticle) {}, wantAccepted: true},
		{name: "missing title", mutate: func(a *domain.ProcessedArticle) { a.Title = "  " }, wantError: "title is required"},
		{name: "short content", mutate: func(a *domain.ProcessedArticle) { a.Content = "Brief." }, wantError: "content too short"},
		{name: "relative url", mutate: func(a *domain.ProcessedArticle) { a.URL = "/news/1" }, wantError: "invalid url"},
		{name: "ftp url", mutate: func(a *domain.ProcessedArticle) { a.URL = "ftp://files.example.sg/a" }, wantError: "invalid url"},
		{name: "future date", mutate: func(a *domain.ProcessedArticle) { a.PublishDate = fixedNow.Add(time.Hour) }, wantError: "in the future"},
		{name: "missing date", mutate: func(a *domain.ProcessedArticle) { a.PublishDate = time.Time{} }, wantError: "publish date is missing"},
		{name: "missing source", mutate: func(a *domain.ProcessedArticle) { a.Source = "" }, wantError: "source is required"},
		{
			name:         "stale article only warns",
			mutate:       func(a *domain.ProcessedArticle) { a.PublishDate = fixedNow.AddDate(-2, 0, 0) },
			wantWarning:  "more than a year",
			wantAccepted: true,
		},
		{
			name:         "long title only warns",
			mutate:       func(a *domain.ProcessedArticle) { a.Title = strings.Repeat("t", 201) },
			wantWarning:  "title longer",
			wantAccepted: true,
		},
		{
			name:         "low relevance only warns",
			mutate:       func(a *domain.ProcessedArticle) { a.RelevanceScore = 0.5 },
			wantWarning:  "low relevance",
			wantAccepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := schoolArticle()
			tt.mutate(&a)

			report := Validate(a, fixedNow)
			assert.Equal(t, tt.wantAccepted, report.Valid(), report.Errors)
			if tt.wantError != "" {
				require.NotEmpty(t, report.Errors)
				assert.Contains(t, strings.Join(report.Errors, "; "), tt.wantError)
			}
			if tt.wantWarning != "" {
				assert.Contains(t, strings.Join(report.Warnings, "; "), tt.wantWarning)
			}
		})
	}
}

func TestCheckRelevance(t *testing.T) {
	t.Parallel()

	t.Run("area and entity", func(t *testing.T) {
		t.Parallel()
		got := CheckRelevance(schoolArticle(), []string{"Tampines"}, tampines)
		assert.True(t, got.Relevant)
		assert.InDelta(t, 0.6, got.Confidence, 1e-9)
	})

	t.Run("district only", func(t *testing.T) {
		t.Parallel()
		a := schoolArticle()
		a.Title = "School upgrades in the East"
		a.Content = "Several schools in the East region will receive new sports halls and libraries next year."
		got := CheckRelevance(a, nil, tampines)
		assert.True(t, got.Relevant)
		assert.InDelta(t, 0.3, got.Confidence, 1e-9)
	})

	t.Run("same region entity plus proximity", func(t *testing.T) {
		t.Parallel()
		a := schoolArticle()
		a.Title = "New library near Bedok"
		a.Content = "A community library will open near Bedok reservoir, serving families across the estate."
		got := CheckRelevance(a, []string{"Bedok"}, tampines)
		assert.InDelta(t, 0.15, got.Confidence, 1e-9)
		assert.False(t, got.Relevant)
	})

	t.Run("unrelated", func(t *testing.T) {
		t.Parallel()
		a := schoolArticle()
		a.Title = "Woodlands clinic"
		a.Content = "A polyclinic in Woodlands will extend its opening hours from next month onwards."
		got := CheckRelevance(a, []string{"Woodlands"}, tampines)
		assert.Zero(t, got.Confidence)
		assert.False(t, got.Relevant)
	})
}

func TestContainsWordReusesPatterns(t *testing.T) {
	t.Parallel()

	assert.True(t, containsWord("new mall in tampines central", "tampines"))
	assert.False(t, containsWord("tampinesville", "tampines"))
	assert.True(t, containsWord("the east (region) plan", "east (region)"))
	assert.Same(t, wordPattern("pasir ris"), wordPattern("pasir ris"))
}

func TestCleanTitle(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"New: Tampines mall opens":                  "Tampines mall opens",
		"BREAKING: MRT line extended - The Straits": "MRT line extended",
		"Jurong office tower | Business Times":      "Jurong office tower",
		"Plain title":                               "Plain title",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanTitle(in), in)
	}

	long := CleanTitle(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len([]rune(long)), 100)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestParseDateToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token string
		want  time.Time
	}{
		{"Q3 2027", time.Date(2027, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{"2Q 2028", time.Date(2028, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{"fourth quarter of 2027", time.Date(2027, time.October, 1, 0, 0, 0, 0, time.UTC)},
		{"March 2028", time.Date(2028, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{"mid-2027", time.Date(2027, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{"early 2029", time.Date(2029, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"late 2027", time.Date(2027, time.October, 1, 0, 0, 0, 0, time.UTC)},
		{"end-2030", time.Date(2030, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{"2031", time.Date(2031, time.December, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := ParseDateToken(tt.token)
		require.True(t, ok, tt.token)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.token, got)
	}

	_, ok := ParseDateToken("next spring")
	assert.False(t, ok)
}

func TestTransform(t *testing.T) {
	t.Parallel()

	a := schoolArticle()
	a.Title = "New: Campus plans for Tampines - Straits Times"
	a.Content = "The ministry announced on 3 March 2026 that the campus will be completed by mid-2028 for 1,200 students."
	c := domain.Classification{Type: domain.TypeSchool, Confidence: 0.8, Keywords: []string{"campus", "school"}}
	ents := domain.EntityExtraction{
		Locations:     []string{"Tampines"},
		Organizations: []string{"MOE"},
		Amounts:       []string{"S$80 million"},
		Dates:         []string{"2030"},
	}

	dev, ok := NewTransformer(fixedScorer(11)).Transform(a, tampines, c, ents)
	require.True(t, ok)

	assert.Equal(t, "Campus plans for Tampines", dev.Title)
	assert.Equal(t, 10.0, dev.ImpactScore)
	assert.Equal(t, tampines.ID, dev.AreaID)
	assert.Equal(t, "School development in Tampines. Involving MOE. Locations: Tampines. Estimated value: S$80 million. Key aspects: campus, school.", dev.Description)
	assert.True(t, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC).Equal(dev.DateAnnounced))
	require.NotNil(t, dev.ExpectedCompletion)
	assert.True(t, time.Date(2028, time.June, 1, 0, 0, 0, 0, time.UTC).Equal(*dev.ExpectedCompletion))
	assert.Equal(t, a.URL, dev.SourceURL)
	assert.Equal(t, a.Source, dev.SourcePublisher)
}

func TestTransformPrefersProjectNameAndFallsBackToDates(t *testing.T) {
	t.Parallel()

	c := domain.Classification{Type: domain.TypeInfrastructure, Confidence: 0.5, Keywords: []string{"mrt"}}
	ents := domain.EntityExtraction{ProjectNames: []string{"Cross Island Line"}, Dates: []string{"2030"}}

	dev, ok := NewTransformer(fixedScorer(7)).Transform(schoolArticle(), tampines, c, ents)
	require.True(t, ok)
	assert.Equal(t, "Cross Island Line", dev.Title)
	require.NotNil(t, dev.ExpectedCompletion)
	assert.Equal(t, 2030, dev.ExpectedCompletion.Year())
}

func TestTransformRejects(t *testing.T) {
	t.Parallel()

	tr := NewTransformer(fixedScorer(5))
	_, ok := tr.Transform(schoolArticle(), tampines, domain.Classification{Type: domain.TypeSchool, Confidence: 0.29}, domain.EntityExtraction{})
	assert.False(t, ok)

	_, ok = tr.Transform(schoolArticle(), tampines, domain.Classification{Type: domain.TypeMixed, Confidence: 0.9}, domain.EntityExtraction{})
	assert.False(t, ok)
}
