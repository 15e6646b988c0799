package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient returns canned status responses in order, repeating the
// last one once the script runs out.
type scriptedClient struct {
	start    *CrawlResponse
	startErr error
	statuses []*CrawlStatusResponse
	polls    int
}

func (c *scriptedClient) StartCrawl(_ context.Context, _ CrawlRequest) (*CrawlResponse, error) {
	return c.start, c.startErr
}

func (c *scriptedClient) GetCrawlStatus(_ context.Context, _ string) (*CrawlStatusResponse, error) {
	i := c.polls
	if i >= len(c.statuses) {
		i = len(c.statuses) - 1
	}
	c.polls++
	return c.statuses[i], nil
}

func TestCrawlAndWait_CompletesAfterPolling(t *testing.T) {
	client := &scriptedClient{
		start: &CrawlResponse{Success: true, ID: "job-1"},
		statuses: []*CrawlStatusResponse{
			{Status: "scraping"},
			{Status: "scraping", Total: 3},
			{Status: "completed", Total: 3, Data: []Page{{URL: "https://a.example.com", StatusCode: 200}}},
		},
	}

	status, err := CrawlAndWait(context.Background(), client, CrawlRequest{URL: "https://a.example.com"},
		WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, "completed", status.Status)
	assert.Len(t, status.Data, 1)
	assert.Equal(t, 3, client.polls)
}

func TestCrawlAndWait_FailedJob(t *testing.T) {
	client := &scriptedClient{
		start:    &CrawlResponse{Success: true, ID: "job-1"},
		statuses: []*CrawlStatusResponse{{Status: "failed", Error: "robots.txt disallows"}},
	}

	_, err := CrawlAndWait(context.Background(), client, CrawlRequest{URL: "https://a.example.com"},
		WithPollInterval(time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robots.txt disallows")
}

func TestCrawlAndWait_StartRejected(t *testing.T) {
	client := &scriptedClient{
		start: &CrawlResponse{Success: false, Error: "invalid url"},
	}

	_, err := CrawlAndWait(context.Background(), client, CrawlRequest{URL: "not-a-url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid url")
}

func TestCrawlAndWait_StartError(t *testing.T) {
	client := &scriptedClient{startErr: eris.New("service down")}

	_, err := CrawlAndWait(context.Background(), client, CrawlRequest{URL: "https://a.example.com"})
	require.Error(t, err)
	assert.Zero(t, client.polls)
}

func TestCrawlAndWait_TimeoutWhileScraping(t *testing.T) {
	client := &scriptedClient{
		start:    &CrawlResponse{Success: true, ID: "job-1"},
		statuses: []*CrawlStatusResponse{{Status: "scraping"}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := CrawlAndWait(ctx, client, CrawlRequest{URL: "https://a.example.com"},
		WithPollInterval(5*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
