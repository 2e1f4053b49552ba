package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	godocx "github.com/fumiama/go-docx"
)

var (
	docxAux   = regexp.MustCompile(`^word/(header\d*|footer\d*|footnotes|endnotes)\.xml$`)
	pptxSlide = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	pptxNotes = regexp.MustCompile(`^ppt/notesSlides/notesSlide(\d+)\.xml$`)
)

// DOCX returns the paragraphs and tables of the body, then headers, footers
// and notes. Hyperlink targets follow their text, so mailto: addresses
// behind a label are kept.
func DOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var body bool
	var aux []*zip.File
	for _, f := range zr.File {
		switch {
		case f.Name == "word/document.xml":
			body = true
		case docxAux.MatchString(f.Name):
			aux = append(aux, f)
		}
	}
	if !body {
		return "", fmt.Errorf("open docx: no word/document.xml")
	}

	doc, err := godocx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse word/document.xml: %w", err)
	}
	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *godocx.Paragraph:
			writeParagraph(&sb, doc, it)
		case *godocx.Table:
			writeTable(&sb, doc, it)
		}
	}

	sort.Slice(aux, func(i, j int) bool { return aux[i].Name < aux[j].Name })
	rest, err := joinParts(aux)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(sb.String())
	if rest == "" {
		return text, nil
	}
	if text == "" {
		return rest, nil
	}
	return text + "\n" + rest, nil
}

func writeParagraph(sb *strings.Builder, doc *godocx.Docx, p *godocx.Paragraph) {
	for _, child := range p.Children {
		switch c := child.(type) {
		case *godocx.Run:
			writeRun(sb, c)
		case *godocx.Hyperlink:
			writeRun(sb, &c.Run)
			if target, err := doc.ReferTarget(c.ID); err == nil && target != "" {
				sb.WriteString(" " + target)
			}
		}
	}
	sb.WriteByte('\n')
}

func writeRun(sb *strings.Builder, r *godocx.Run) {
	for _, child := range r.Children {
		switch c := child.(type) {
		case *godocx.Text:
			sb.WriteString(c.Text)
		case *godocx.Tab:
			sb.WriteByte('\t')
		case *godocx.BarterRabbet:
			sb.WriteByte('\n')
		}
	}
}

// writeTable emits one line per row with tab separated cells. Nested
// tables follow the cell holding them.
func writeTable(sb *strings.Builder, doc *godocx.Docx, t *godocx.Table) {
	for _, row := range t.TableRows {
		var nested []*godocx.Table
		for i, cell := range row.TableCells {
			if i > 0 {
				sb.WriteByte('\t')
			}
			var cb strings.Builder
			for _, p := range cell.Paragraphs {
				writeParagraph(&cb, doc, p)
			}
			sb.WriteString(strings.Join(strings.Fields(cb.String()), " "))
			nested = append(nested, cell.Tables...)
		}
		sb.WriteByte('\n')
		for _, n := range nested {
			writeTable(sb, doc, n)
		}
	}
}

// PPTX returns the text of every slide in slide order, then speaker notes.
func PPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}

	var slides, notes []*zip.File
	for _, f := range zr.File {
		switch {
		case pptxSlide.MatchString(f.Name):
			slides = append(slides, f)
		case pptxNotes.MatchString(f.Name):
			notes = append(notes, f)
		}
	}
	sortNumbered(slides, pptxSlide)
	sortNumbered(notes, pptxNotes)
	return joinParts(append(slides, notes...))
}

func sortNumbered(files []*zip.File, re *regexp.Regexp) {
	num := func(f *zip.File) int {
		n, _ := strconv.Atoi(re.FindStringSubmatch(f.Name)[1])
		return n
	}
	sort.Slice(files, func(i, j int) bool { return num(files[i]) < num(files[j]) })
}

func joinParts(parts []*zip.File) (string, error) {
	var sb strings.Builder
	for _, f := range parts {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		err = xmlText(&sb, rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", f.Name, err)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// xmlText copies character data of <t> runs, breaking lines at paragraph
// ends. WordprocessingML (w:) and DrawingML (a:) share these local names.
func xmlText(sb *strings.Builder, r io.Reader) error {
	dec := xml.NewDecoder(r)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}
