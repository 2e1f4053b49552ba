// Package search queries external search services for documents that may
// mention addresses at the target domain.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

//go:generate mockgen -source=backend.go -destination=mocks/backend_mock.go -package=mocks Backend

// ErrUnsupported is returned for backend names the registry does not know.
var ErrUnsupported = errors.New("unsupported backend")

// Candidate is one document to fetch.
type Candidate struct {
	// ID is the source identifier recorded next to every email found in it.
	ID          string
	ContentType string
	Backend     string
	Query       string
	// Header carries request headers the fetch needs, e.g. API auth.
	Header http.Header
}

// Page is one page of backend results.
type Page struct {
	Candidates []Candidate
	HasNext    bool
}

// Backend is a paginated search service.
type Backend interface {
	Name() string
	// Search returns page (1-based) of results for query.
	Search(ctx context.Context, query string, page int) (*Page, error)
}

// APIError is an error payload or status returned by a search service.
type APIError struct {
	Backend string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Backend, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}

var linkNextRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextLink reports whether an RFC 5988 Link header advertises a next page.
func hasNextLink(h http.Header) bool {
	for _, v := range h.Values("Link") {
		if linkNextRe.MatchString(v) {
			return true
		}
	}
	return false
}
