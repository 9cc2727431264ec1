package domain

import (
	"errors"
	"time"
)

var (
	// ErrAreaNotFound is returned when articles cannot be attributed to an existing area.
	ErrAreaNotFound = errors.New("area not found")
	// ErrJobTimeout marks a crawl job that exceeded its overall deadline.
	ErrJobTimeout = errors.New("job timed out")
	// ErrSourceTimeout marks a source fetch that exceeded its own deadline.
	ErrSourceTimeout = errors.New("source timed out")
)

// JobStatus enumerates crawl job lifecycle states.
type JobStatus string

const (
	JobWaiting    JobStatus = "waiting"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobData is the payload of a crawl request.
type JobData struct {
	AreaID   string    `json:"areaId"`
	AreaName string    `json:"areaName"`
	Query    string    `json:"query"`
	FromDate time.Time `json:"fromDate"`
}

// CrawlJob tracks one queued crawl request.
type CrawlJob struct {
	ID           string         `json:"jobId"`
	Data         JobData        `json:"data"`
	Status       JobStatus      `json:"status"`
	Progress     int            `json:"progress"`
	Attempts     int            `json:"attempts"`
	Result       *CrawlerResult `json:"result,omitempty"`
	FailedReason string         `json:"failedReason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// CrawlerResult is the terminal, inspectable outcome of a crawl job.
// It is produced even when every source fails.
type CrawlerResult struct {
	JobID            string               `json:"jobId"`
	AreaID           string               `json:"areaId"`
	AreaName         string               `json:"areaName"`
	Articles         []ProcessedArticle   `json:"articles"`
	TotalArticles    int                  `json:"totalArticles"`
	ProcessingTimeMs int64                `json:"processingTimeMs"`
	Errors           []string             `json:"errors"`
	Processing       *ProcessingJobResult `json:"processing,omitempty"`
}
