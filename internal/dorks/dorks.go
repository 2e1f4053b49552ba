// Package dorks expands query templates into concrete search queries for a
// target domain.
package dorks

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Placeholder is replaced by the target domain in every template.
const Placeholder = "example.com"

// GitHub is the template set used for the code and repository search APIs.
var GitHub = []string{"@example.com"}

// Default is the web search dork list.
var Default = []string{
	`inurl:"@example.com"`,
	`cache:example.com site:linkedin.com "@example.com"`,
	`intext:"@example.com" site:facebook.com`,
	`site:stackoverflow.com "@example.com"`,
	`intext:@example.com email`,
	`inurl:staff "@example.com"`,
	`"@example.com" intext:"contact"`,
	`intext:"@example.com" filetype:txt`,
	`intext:"@example.com" site:tumblr.com`,
	`site:example.com`,
	`@example.com`,
	`link:example.com`,
	`inurl:"contact" "@example.com"`,
	`intitle:"example.com email"`,
	`intitle:"@example.com"`,
	`filetype:txt "@example.com"`,
	`site:medium.com "@example.com"`,
	`intext:"@example.com" site:speakerdeck.com`,
	`site:*.example.com inurl:contributor`,
	`inurl:team "@example.com"`,
	`site:*.example.com inurl:directory`,
	`inurl:about "@example.com"`,
	`intext:"@example.com" filetype:doc`,
	`intext:"@example.com" site:vimeo.com`,
	`inurl:people "@example.com"`,
	`inurl:profiles "@example.com"`,
	`site:*.example.com inurl:profile`,
	`related:example.com`,
	`site:twitter.com "@example.com" -"tweets"`,
	`intext:"@example.com" site:youtube.com`,
	`site:*.example.com filetype:pdf`,
	`inurl:"directory" "@example.com"`,
	`inurl:users "@example.com"`,
	`filetype:doc "@example.com"`,
	`intext:"@example.com" filetype:ppt`,
	`filetype:pdf "@example.com"`,
	`site:linkedin.com "@example.com"`,
	`site:*.example.com inurl:emails`,
	`filetype:xls "@example.com"`,
	`site:*.example.com inurl:people`,
	`"@example.com" intext:"email" -site:example.com`,
	`intext:"@example.com" filetype:pdf`,
	`inurl:alumni "@example.com"`,
	`site:github.com "@example.com"`,
	`inurl:"staff" "@example.com"`,
	`intext:"@example.com" site:instagram.com`,
	`site:*.example.com filetype:doc`,
	`site:*.example.com inurl:email`,
	`site:*.example.com inurl:team`,
	`inurl:"about us" "@example.com"`,
	`site:*.example.com inurl:member`,
	`site:zoominfo.com "@example.com"`,
	`site:*.example.com inurl:about`,
	`site:facebook.com "@example.com"`,
	`inurl:contacts "@example.com"`,
	`intext:"@example.com" site:pinterest.com`,
	`intext:"@example.com" site:researchgate.net`,
	`inurl:directory "@example.com"`,
	`intext:"@example.com" site:academia.edu`,
	`site:twitter.com "@example.com"`,
	`inurl:members "@example.com"`,
	`intext:"@example.com" site:slideshare.net`,
	`site:*.example.com inurl:contacts`,
	`inurl:contact "@example.com"`,
	`site:*.example.com inurl:contact`,
	`intext:"@example.com" filetype:xls`,
	`site:rocketreach.co "@example.com"`,
	`"@example.com" -site:example.com -site:mail.example.com`,
	`site:gitlab.com "@example.com"`,
	`"@example.com"`,
	`site:crunchbase.com "@example.com"`,
	`site:*.example.com filetype:xls`,
	`site:*.example.com inurl:faculty`,
	`site:*.example.com filetype:txt`,
	`inurl:emails "@example.com"`,
	`inurl:contributors "@example.com"`,
	`site:*.example.com inurl:alumni`,
	`inurl:"@example.com" filetype:csv`,
	`inurl:github.com "@example.com"`,
	`filetype:xlsx "@example.com"`,
	`filetype:pptx "@example.com"`,
	`inurl:faculty "@example.com"`,
	`site:*.example.com inurl:staff`,
	`site:*.example.com inurl:user`,
	`"@example.com" -site:example.com`,
	`intext:"@example.com" site:reddit.com`,
	`site:reddit.com "@example.com"`,
	`site:quora.com "@example.com"`,
	`allintext: @example.com`,
}

// Generate substitutes domain for the first occurrence of Placeholder in each
// template, preserving template order. Templates without the placeholder are
// passed through unchanged.
func Generate(templates []string, domain string) []string {
	queries := make([]string, 0, len(templates))
	for _, t := range templates {
		queries = append(queries, strings.Replace(t, Placeholder, domain, 1))
	}
	return queries
}

// Load reads one template per line. Blank lines and lines starting with "#"
// are skipped.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dork file: %w", err)
	}
	defer f.Close()

	var templates []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		templates = append(templates, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dork file: %w", err)
	}
	return templates, nil
}
