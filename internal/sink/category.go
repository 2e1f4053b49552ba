package sink

import (
	"sort"
	"strings"
)

// categoryKeywords tags a local part with the department it most likely
// belongs to.
var categoryKeywords = map[string][]string{
	"general":   {"info", "contact", "inquiry", "general", "hello", "main", "office", "mail", "email", "reach"},
	"sales":     {"sales", "sell", "order", "purchase", "buy", "quote", "pricing", "business", "commercial", "revenue"},
	"support":   {"support", "help", "assist", "troubleshoot", "issue", "problem", "service", "customer", "care"},
	"admin":     {"admin", "administrator", "management", "manager", "executive", "director", "ceo", "founder", "owner"},
	"marketing": {"marketing", "promotion", "advertise", "newsletter", "subscribe", "pr", "public", "media", "social"},
	"technical": {"tech", "technical", "it", "developer", "dev", "engineer", "sysadmin", "system", "server", "hosting", "webmaster"},
	"finance":   {"finance", "financial", "accounting", "accountant", "billing", "invoice", "payment", "payable", "receivable", "bookkeeping"},
	"hr":        {"hr", "human", "recruit", "recruitment", "jobs", "career", "hiring", "employment", "personnel", "staff"},
	"legal":     {"legal", "law", "attorney", "lawyer", "counsel", "compliance", "regulatory", "contract"},
}

var categoryNames = func() []string {
	names := make([]string, 0, len(categoryKeywords))
	for name := range categoryKeywords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

// Category returns the department whose keywords occur most often in the
// local part of email, or "other". Ties go to the alphabetically first name.
func Category(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "other"
	}
	local := strings.ToLower(email[:at])

	best, bestHits := "other", 0
	for _, name := range categoryNames {
		hits := 0
		for _, kw := range categoryKeywords[name] {
			if strings.Contains(local, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = name, hits
		}
	}
	return best
}
