// Package sink writes result mappings to files and external stores.
package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcdannyboy/EmailHunter/internal/aggregate"
)

var csvHeader = []string{"Email", "Sources"}

// Paths returns the CSV locations for the all and exact mappings.
func Paths(dir, prefix string) (all, exact string) {
	return filepath.Join(dir, prefix+"_emails.csv"),
		filepath.Join(dir, "exact_"+prefix+"_emails.csv")
}

// WriteCSV writes one row per email in lexical order: the address and its
// sources rendered as "[src1, src2]".
func WriteCSV(w io.Writer, m aggregate.Mapping) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, email := range m.Emails() {
		sources := "[" + strings.Join(m[email].Sorted(), ", ") + "]"
		if err := cw.Write([]string{email, sources}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile replaces path atomically with the CSV rendering of m.
func WriteCSVFile(path string, m aggregate.Mapping) error {
	return writeAtomic(path, func(w io.Writer) error { return WriteCSV(w, m) })
}

// writeAtomic writes through a temp file in the same directory and renames it
// over path, so readers never see a half written file.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
