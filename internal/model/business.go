package model

import "time"

// PipelineStatus represents the current state of a business in the
// crawl → fingerprint → publish pipeline.
type PipelineStatus string

const (
	StatusPending       PipelineStatus = "pending"
	StatusCrawling      PipelineStatus = "crawling"
	StatusCrawled       PipelineStatus = "crawled"
	StatusAnalyzing     PipelineStatus = "analyzing"
	StatusFingerprinted PipelineStatus = "fingerprinted"
	StatusPublishing    PipelineStatus = "publishing"
	StatusPublished     PipelineStatus = "published"
	StatusError         PipelineStatus = "error"
)

// Terminal reports whether no further automatic transitions are possible.
func (s PipelineStatus) Terminal() bool {
	return s == StatusPublished || s == StatusError
}

// Business is the persisted record for a tracked business.
type Business struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	URL           string         `json:"url"`
	Category      string         `json:"category,omitempty"`
	City          string         `json:"city,omitempty"`
	State         string         `json:"state,omitempty"`
	Country       string         `json:"country,omitempty"`
	AutoPublish   bool           `json:"auto_publish"`
	Status        PipelineStatus `json:"status"`
	StatusMessage string         `json:"status_message,omitempty"`
	QID           string         `json:"qid,omitempty"`
	LastCrawledAt *time.Time     `json:"last_crawled_at,omitempty"`
	NextRunAt     *time.Time     `json:"next_run_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Location holds the optional location portion of a business profile.
type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

func (l *Location) Empty() bool {
	return l == nil || (l.City == "" && l.State == "" && l.Country == "")
}

// BusinessContext is the immutable snapshot a pipeline run operates on.
// It is built once per run from the persisted Business and never mutated
// by any stage.
type BusinessContext struct {
	BusinessID string     `json:"business_id"`
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	Category   string     `json:"category,omitempty"`
	Location   *Location  `json:"location,omitempty"`
	CrawlData  *CrawlData `json:"crawl_data,omitempty"`
}

// Context builds a BusinessContext snapshot from a Business record.
func (b Business) Context(crawl *CrawlData) BusinessContext {
	ctx := BusinessContext{
		BusinessID: b.ID,
		Name:       b.Name,
		URL:        b.URL,
		Category:   b.Category,
		CrawlData:  crawl,
	}
	if b.City != "" || b.State != "" || b.Country != "" {
		ctx.Location = &Location{City: b.City, State: b.State, Country: b.Country}
	}
	return ctx
}

// CrawledPage is a single page returned by the crawler collaborator.
type CrawledPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Markdown   string `json:"markdown"`
	StatusCode int    `json:"status_code"`
}

// CrawlData holds the structured page content persisted after a crawl step.
type CrawlData struct {
	JobID     string        `json:"job_id,omitempty"`
	Pages     []CrawledPage `json:"pages"`
	CrawledAt time.Time     `json:"crawled_at"`
}
