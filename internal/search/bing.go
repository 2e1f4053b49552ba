package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

const (
	Bing = "bing"

	defaultBingURL = "https://www.bing.com/search"
	bingPageSize   = 10
)

// BingRSS scrapes the RSS rendering of Bing web search. It needs no key.
type BingRSS struct {
	Client   *http.Client
	Endpoint string
}

func NewBingRSS(client *http.Client) *BingRSS {
	return &BingRSS{Client: client, Endpoint: defaultBingURL}
}

func (b *BingRSS) Name() string { return Bing }

func (b *BingRSS) Search(ctx context.Context, query string, page int) (*Page, error) {
	params := url.Values{}
	params.Set("format", "rss")
	params.Set("q", query)
	params.Set("first", strconv.Itoa((page-1)*bingPageSize+1))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Bing, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Backend: Bing, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, &APIError{Backend: Bing, Status: resp.StatusCode, Message: "parse feed: " + err.Error()}
	}

	out := &Page{}
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{ID: link, Backend: Bing, Query: query})
	}
	out.HasNext = len(out.Candidates) > 0
	return out, nil
}
