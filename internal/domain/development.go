package domain

import "time"

// Area is a named geographic region developments are attributed to.
type Area struct {
	ID          string   `db:"id"`
	Name        string   `db:"name"`
	District    string   `db:"district"`
	Latitude    float64  `db:"latitude"`
	Longitude   float64  `db:"longitude"`
	PostalCodes []string `db:"-"`
}

// Development is the persisted record of one real-world project.
type Development struct {
	ID                 string          `db:"id" json:"id" yaml:"id"`
	AreaID             string          `db:"area_id" json:"areaId" yaml:"areaId"`
	Type               DevelopmentType `db:"type" json:"type" yaml:"type"`
	Title              string          `db:"title" json:"title" yaml:"title"`
	Description        string          `db:"description" json:"description" yaml:"description"`
	ImpactScore        float64         `db:"impact_score" json:"impactScore" yaml:"impactScore"`
	DateAnnounced      time.Time       `db:"date_announced" json:"dateAnnounced" yaml:"dateAnnounced"`
	ExpectedCompletion *time.Time      `db:"expected_completion" json:"expectedCompletion,omitempty" yaml:"expectedCompletion,omitempty"`
	SourceURL          string          `db:"source_url" json:"sourceUrl" yaml:"sourceUrl"`
	SourcePublisher    string          `db:"source_publisher" json:"sourcePublisher" yaml:"sourcePublisher"`
	SourcePublishDate  time.Time       `db:"source_publish_date" json:"sourcePublishDate" yaml:"sourcePublishDate"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt" yaml:"createdAt"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt" yaml:"updatedAt"`
}

// ClampImpactScore bounds a score to the [0,10] range.
func ClampImpactScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 10:
		return 10
	default:
		return score
	}
}

// ProcessingJobResult summarises one validation pipeline run for an area.
type ProcessingJobResult struct {
	ProcessedCount      int           `json:"processedCount"`
	CreatedDevelopments []Development `json:"createdDevelopments"`
	SkippedCount        int           `json:"skippedCount"`
	Errors              []string      `json:"errors"`
	ProcessingTimeMs    int64         `json:"processingTimeMs"`
}

// ProcessingStatistics aggregates persisted developments.
type ProcessingStatistics struct {
	TotalDevelopments     int                     `json:"totalDevelopments"`
	ByType                map[DevelopmentType]int `json:"byType"`
	AvgImpactScore        float64                 `json:"avgImpactScore"`
	RecentProcessingCount int                     `json:"recentProcessingCount"`
}
