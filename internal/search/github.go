package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	GitHubCode  = "github-code"
	GitHubRepos = "github-repos"

	defaultGitHubAPI = "https://api.github.com"
	githubPerPage    = 100
)

// GitHub searches either code or repositories through the REST API.
type GitHub struct {
	Client  *http.Client
	BaseURL string
	Token   string
	// Repos selects repository search instead of code search.
	Repos bool
}

// NewGitHubCode returns the code search backend. Candidates are blob API URLs
// whose bodies are base64 JSON.
func NewGitHubCode(client *http.Client, token string) *GitHub {
	return &GitHub{Client: client, BaseURL: defaultGitHubAPI, Token: token}
}

// NewGitHubRepos returns the repository search backend.
func NewGitHubRepos(client *http.Client, token string) *GitHub {
	return &GitHub{Client: client, BaseURL: defaultGitHubAPI, Token: token, Repos: true}
}

func (g *GitHub) Name() string {
	if g.Repos {
		return GitHubRepos
	}
	return GitHubCode
}

type githubItem struct {
	GitURL  string `json:"git_url"`
	HTMLURL string `json:"html_url"`
}

type githubResponse struct {
	Items   []githubItem `json:"items"`
	Message string       `json:"message"`
}

func (g *GitHub) authHeader() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	if g.Token != "" {
		h.Set("Authorization", "token "+g.Token)
	}
	return h
}

func (g *GitHub) Search(ctx context.Context, query string, page int) (*Page, error) {
	kind := "code"
	if g.Repos {
		kind = "repositories"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(githubPerPage))
	endpoint := fmt.Sprintf("%s/search/%s?%s", strings.TrimRight(g.BaseURL, "/"), kind, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = g.authHeader()

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.Name(), err)
	}
	defer resp.Body.Close()

	var body githubResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &APIError{Backend: g.Name(), Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK || body.Message != "" {
		msg := body.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Backend: g.Name(), Status: resp.StatusCode, Message: msg}
	}

	out := &Page{HasNext: hasNextLink(resp.Header)}
	for _, item := range body.Items {
		c := Candidate{Backend: g.Name(), Query: query}
		if g.Repos {
			c.ID = item.HTMLURL
			c.ContentType = "text/html"
		} else {
			c.ID = item.GitURL
			c.ContentType = "application/json"
			c.Header = g.authHeader()
		}
		if c.ID == "" {
			continue
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out, nil
}
