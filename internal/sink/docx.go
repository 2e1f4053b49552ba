package sink

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gingfrederik/docx"
)

// WriteDOCX renders r as a Word report grouped by category.
func WriteDOCX(path string, r Report) error {
	f := docx.NewFile()

	addLine(f, fmt.Sprintf("Email Harvest Report: %s", r.Domain), 20, "")
	meta := fmt.Sprintf("Run %s | %s to %s", r.RunID,
		r.Started.Format(time.RFC3339), r.Finished.Format(time.RFC3339))
	addLine(f, meta, 10, "808080")
	if r.Pattern != "" {
		addLine(f, "User pattern: "+r.Pattern, 10, "808080")
	}

	exactCount := 0
	groups := make(map[string][]Entry)
	for _, e := range r.Entries {
		groups[e.Category] = append(groups[e.Category], e)
		if e.Exact {
			exactCount++
		}
	}
	f.AddParagraph().AddText(fmt.Sprintf("%d emails, %d exact matches", len(r.Entries), exactCount))
	f.AddParagraph()

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		addLine(f, strings.ToUpper(name[:1])+name[1:], 16, "")
		for _, e := range groups[name] {
			line := e.Email
			if e.Exact {
				line += "  (exact)"
			}
			addLine(f, line, 12, "")
			for _, src := range e.Sources {
				addLine(f, "    "+src, 9, "0000FF")
			}
		}
		f.AddParagraph().AddText("--------------------------------------------------")
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func addLine(f *docx.File, text string, size int, color string) {
	run := f.AddParagraph().AddText(text)
	run.Size(size)
	if color != "" {
		run.Color(color)
	}
}
