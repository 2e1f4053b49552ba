package search

import (
	"fmt"
	"net/http"
	"strings"
)

// Credentials holds per service secrets.
type Credentials struct {
	GitHubToken string
	SerpAPIKey  string
}

// Names lists every backend the registry can build.
func Names() []string {
	return []string{GitHubCode, GitHubRepos, SerpAPI, Bing}
}

// Build constructs the named backends in the given order. num is the page
// size requested from services that accept one.
func Build(names []string, client *http.Client, creds Credentials, num int) ([]Backend, error) {
	var out []Backend
	for _, raw := range names {
		switch name := strings.ToLower(strings.TrimSpace(raw)); name {
		case "":
			continue
		case GitHubCode:
			out = append(out, NewGitHubCode(client, creds.GitHubToken))
		case GitHubRepos:
			out = append(out, NewGitHubRepos(client, creds.GitHubToken))
		case "github":
			out = append(out, NewGitHubCode(client, creds.GitHubToken), NewGitHubRepos(client, creds.GitHubToken))
		case SerpAPI, "google":
			if creds.SerpAPIKey == "" {
				return nil, fmt.Errorf("%s backend requires an API key", SerpAPI)
			}
			out = append(out, NewSerpAPI(client, creds.SerpAPIKey, num))
		case Bing:
			out = append(out, NewBingRSS(client))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupported, raw)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no backend selected", ErrUnsupported)
	}
	return out, nil
}

// UsesGitHub reports whether any backend queries the GitHub API; such runs use
// the GitHub template set.
func UsesGitHub(backends []Backend) bool {
	for _, b := range backends {
		if n := b.Name(); n == GitHubCode || n == GitHubRepos {
			return true
		}
	}
	return false
}
