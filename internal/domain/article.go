package domain

import "time"

// RawArticle is a core entity describing an article fetched from a source collector.
// It is never persisted as-is.
type RawArticle struct {
	Title       string    `json:"title" yaml:"title"`
	Content     string    `json:"content" yaml:"content"`
	URL         string    `json:"url" yaml:"url"`
	Source      string    `json:"source" yaml:"source"`
	PublishDate time.Time `json:"publishDate" yaml:"publishDate"`
}

// DevelopmentType enumerates the development categories an article can describe.
type DevelopmentType string

const (
	TypeSchool         DevelopmentType = "school"
	TypeInfrastructure DevelopmentType = "infrastructure"
	TypeShopping       DevelopmentType = "shopping"
	TypeBusiness       DevelopmentType = "business"
	TypeMixed          DevelopmentType = "mixed"
	TypeUnknown        DevelopmentType = "unknown"
)

// PersistableTypes lists the categories a Development record may carry, in table order.
var PersistableTypes = []DevelopmentType{TypeSchool, TypeInfrastructure, TypeShopping, TypeBusiness}

// IsPersistable reports whether t is one of the four concrete categories.
func (t DevelopmentType) IsPersistable() bool {
	switch t {
	case TypeSchool, TypeInfrastructure, TypeShopping, TypeBusiness:
		return true
	default:
		return false
	}
}

// ArticleEntities is the lightweight entity set attached by the content filter.
type ArticleEntities struct {
	Locations     []string `json:"locations"`
	Organizations []string `json:"organizations"`
	Projects      []string `json:"projects"`
}

// ProcessedArticle is a cleaned article annotated by the content filter.
// It lives for a single pipeline run.
type ProcessedArticle struct {
	RawArticle
	Keywords          []string        `json:"keywords"`
	DevelopmentType   DevelopmentType `json:"developmentType"`
	RelevanceScore    float64         `json:"relevanceScore"`
	ExtractedEntities ArticleEntities `json:"extractedEntities"`
	// Plain is the article with markup removed but punctuation, currency
	// signs and quotes intact. Entity extraction runs on it.
	Plain             RawArticle      `json:"-"`
}

// PlainArticle returns Plain, or the cleaned article when Plain is unset.
func (a ProcessedArticle) PlainArticle() RawArticle {
	if a.Plain.Title == "" && a.Plain.Content == "" {
		return a.RawArticle
	}
	return a.Plain
}

// Text returns title and content joined for pattern matching.
func (a RawArticle) Text() string {
	return a.Title + " " + a.Content
}

// Classification is the categorization engine's verdict for one article.
type Classification struct {
	Type       DevelopmentType `json:"type"`
	Confidence float64         `json:"confidence"`
	Keywords   []string        `json:"keywords"`
}

// EntityExtraction holds deduplicated, order-preserving entity lists.
type EntityExtraction struct {
	ProjectNames  []string `json:"projectNames"`
	Locations     []string `json:"locations"`
	Organizations []string `json:"organizations"`
	Dates         []string `json:"dates"`
	Amounts       []string `json:"amounts"`
}
