package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	SerpAPI = "serpapi"

	defaultSerpAPI = "https://serpapi.com/search.json"
	serpPageSize   = 10
)

// SerpAPIBackend runs Google queries through SerpAPI.
type SerpAPIBackend struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	// Num is the number of results requested per page.
	Num int
}

func NewSerpAPI(client *http.Client, apiKey string, num int) *SerpAPIBackend {
	if num <= 0 {
		num = serpPageSize
	}
	return &SerpAPIBackend{Client: client, Endpoint: defaultSerpAPI, APIKey: apiKey, Num: num}
}

func (s *SerpAPIBackend) Name() string { return SerpAPI }

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Link string `json:"link"`
	} `json:"organic_results"`
	Pagination struct {
		Next string `json:"next"`
	} `json:"serpapi_pagination"`
}

func (s *SerpAPIBackend) Search(ctx context.Context, query string, page int) (*Page, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(s.Num))
	params.Set("start", strconv.Itoa((page-1)*s.Num))
	params.Set("api_key", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SerpAPI, err)
	}
	defer resp.Body.Close()

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &APIError{Backend: SerpAPI, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	if body.Error != "" {
		return nil, &APIError{Backend: SerpAPI, Status: resp.StatusCode, Message: body.Error}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Backend: SerpAPI, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	out := &Page{HasNext: body.Pagination.Next != ""}
	for _, r := range body.OrganicResults {
		link := strings.TrimSpace(r.Link)
		if link == "" {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{ID: link, Backend: SerpAPI, Query: query})
	}
	return out, nil
}
