// Package review wraps the Notion API for the manual-review queue. Runs
// that fail the notability gate or hit unrecoverable publish errors land
// here for a human decision.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Item is one entry in the manual-review queue.
type Item struct {
	BusinessID   string
	BusinessName string
	Reason       string
	Score        int
	Confidence   float64
	QID          string
}

// Client defines the review-queue operations.
type Client interface {
	// Enqueue creates a review page for the given item and returns its
	// Notion page ID.
	Enqueue(ctx context.Context, dbID string, item Item) (string, error)

	// Resolve marks an existing review page as handled.
	Resolve(ctx context.Context, pageID, resolution string) error

	// ListPending returns the business IDs of open review items.
	ListPending(ctx context.Context, dbID string) ([]string, error)
}

// ClientOption configures the review client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
}

// NewClient creates a review-queue client with the given integration token.
// By default, API calls are throttled to 3 req/s (Notion's rate limit).
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		inner:   notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *notionClient) Enqueue(ctx context.Context, dbID string, item Item) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", eris.Wrap(err, "review: rate limit")
	}

	now := notionapi.Date(time.Now())
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{{
					Text: &notionapi.Text{Content: item.BusinessName},
				}},
			},
			"Business ID": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{
					Text: &notionapi.Text{Content: item.BusinessID},
				}},
			},
			"Reason": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{
					Text: &notionapi.Text{Content: item.Reason},
				}},
			},
			"Visibility Score": notionapi.NumberProperty{
				Number: float64(item.Score),
			},
			"Confidence": notionapi.NumberProperty{
				Number: item.Confidence,
			},
			"Status": notionapi.SelectProperty{
				Select: notionapi.Option{Name: "Pending"},
			},
			"Queued At": notionapi.DateProperty{
				Date: &notionapi.DateObject{
					Start: &now,
				},
			},
		},
	}
	if item.QID != "" {
		req.Properties["QID"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{
				Text: &notionapi.Text{Content: item.QID},
			}},
		}
	}

	page, err := c.inner.Page.Create(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "review: create page")
	}
	return string(page.ID), nil
}

func (c *notionClient) Resolve(ctx context.Context, pageID, resolution string) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "review: rate limit")
	}

	_, err := c.inner.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.SelectProperty{
				Select: notionapi.Option{Name: resolution},
			},
		},
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("review: update page %s", pageID))
	}
	return nil
}

func (c *notionClient) ListPending(ctx context.Context, dbID string) ([]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "review: rate limit")
	}

	resp, err := c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Select:   &notionapi.SelectFilterCondition{Equals: "Pending"},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("review: query database %s", dbID))
	}

	ids := make([]string, 0, len(resp.Results))
	for _, page := range resp.Results {
		prop, ok := page.Properties["Business ID"].(*notionapi.RichTextProperty)
		if !ok || len(prop.RichText) == 0 {
			continue
		}
		ids = append(ids, prop.RichText[0].PlainText)
	}
	return ids, nil
}
