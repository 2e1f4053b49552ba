package sink

import (
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/bcdannyboy/EmailHunter/internal/aggregate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is the serialised form of one email.
type Entry struct {
	Email    string   `json:"email"`
	Category string   `json:"category"`
	Exact    bool     `json:"exact"`
	Sources  []string `json:"sources"`
}

// Report is a complete run result.
type Report struct {
	RunID    string    `json:"run_id"`
	Domain   string    `json:"domain"`
	Pattern  string    `json:"user_pattern,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Entries  []Entry   `json:"emails"`
}

// Entries flattens the mappings in lexical email order.
func Entries(all, exact aggregate.Mapping) []Entry {
	out := make([]Entry, 0, len(all))
	for _, email := range all.Emails() {
		_, isExact := exact[email]
		out = append(out, Entry{
			Email:    email,
			Category: Category(email),
			Exact:    isExact,
			Sources:  all[email].Sorted(),
		})
	}
	return out
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteJSONFile replaces path atomically.
func WriteJSONFile(path string, r Report) error {
	return writeAtomic(path, func(w io.Writer) error { return WriteJSON(w, r) })
}
