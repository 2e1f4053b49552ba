package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gingfrederik/docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestClassify(t *testing.T) {
	pdfMagic := []byte("%PDF-1.4\n")
	docxZip := zipOf(t, map[string]string{"word/document.xml": "<w:document/>"})

	cases := []struct {
		name        string
		contentType string
		url         string
		data        []byte
		want        Kind
	}{
		{"html with charset", "text/html; charset=utf-8", "", nil, KindHTML},
		{"pdf mime", "application/pdf", "", nil, KindPDF},
		{"docx mime", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "", nil, KindDOCX},
		{"xlsx mime", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "", nil, KindXLSX},
		{"pptx mime", "application/vnd.openxmlformats-officedocument.presentationml.presentation", "", nil, KindPPTX},
		{"plain", "text/plain", "https://acme.co/x.pdf", nil, KindText},
		{"json treated as text", "application/json", "", nil, KindText},
		{"image", "image/png", "", nil, KindNone},
		{"legacy word", "application/msword", "", nil, KindNone},
		{"octet stream by extension", "application/octet-stream", "https://acme.co/staff.xlsx?dl=1", nil, KindXLSX},
		{"untyped pdf sniffed", "", "https://acme.co/file", pdfMagic, KindPDF},
		{"untyped docx sniffed", "", "https://acme.co/file", docxZip, KindDOCX},
		{"untyped html sniffed", "", "", []byte("<!DOCTYPE html><html><body>x</body></html>"), KindHTML},
		{"untyped text", "", "", []byte("jane@acme.co"), KindText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.contentType, tc.url, tc.data))
		})
	}
}

func TestHTMLVisibleText(t *testing.T) {
	page := `<html><head><title>Team</title><style>.a{color:red}</style>
<script>var x = "hidden@acme.co";</script></head>
<body><table><tr><td>Contact</td><td>jane.doe [at] acme.co</td></tr></table>
<p>Sales<br>sales@acme.co</p><a href="mailto:ceo@acme.co?subject=hi">write us</a></body></html>`

	text, err := HTML([]byte(page), "text/html")
	require.NoError(t, err)

	assert.Contains(t, text, "Contact\njane.doe [at] acme.co")
	assert.Contains(t, text, "Sales\nsales@acme.co")
	assert.Contains(t, text, "ceo@acme.co")
	assert.NotContains(t, text, "hidden@acme.co")
	assert.NotContains(t, text, "color:red")
}

func TestHTMLDecodesEntities(t *testing.T) {
	text, err := HTML([]byte(`<p>jane&#64;acme.co</p>`), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.co", text)
}

func TestDOCX(t *testing.T) {
	f := docx.NewFile()
	f.AddParagraph().AddText("Press contact")
	f.AddParagraph().AddText("press(at)acme.co")
	path := filepath.Join(t.TempDir(), "contacts.docx")
	require.NoError(t, f.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text, err := DOCX(data)
	require.NoError(t, err)
	assert.Contains(t, text, "Press contact\npress(at)acme.co")
}

func TestDOCXHeadersAfterBody(t *testing.T) {
	data := zipOf(t, map[string]string{
		"word/header1.xml":  `<w:hdr xmlns:w="w"><w:p><w:r><w:t>header</w:t></w:r></w:p></w:hdr>`,
		"word/document.xml": `<w:document xmlns:w="w"><w:body><w:p><w:r><w:t>body</w:t></w:r></w:p></w:body></w:document>`,
	})
	text, err := DOCX(data)
	require.NoError(t, err)
	assert.Equal(t, "body\nheader", text)
}

func TestDOCXHyperlinksAndTables(t *testing.T) {
	const w = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	data := zipOf(t, map[string]string{
		"word/document.xml": `<w:document ` + w + `><w:body>` +
			`<w:p><w:r><w:t xml:space="preserve">Write to </w:t></w:r>` +
			`<w:hyperlink r:id="rId7"><w:r><w:t>our press desk</w:t></w:r></w:hyperlink></w:p>` +
			`<w:tbl><w:tr>` +
			`<w:tc><w:p><w:r><w:t>Jane</w:t></w:r></w:p></w:tc>` +
			`<w:tc><w:p><w:r><w:t>jane.doe [at] acme.co</w:t></w:r></w:p></w:tc>` +
			`</w:tr></w:tbl>` +
			`</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" ` +
			`Target="mailto:press@acme.co" TargetMode="External"/></Relationships>`,
		"word/footnotes.xml": `<w:footnotes ` + w + `><w:footnote><w:p><w:r><w:t>bob(at)acme.co</w:t></w:r></w:p></w:footnote></w:footnotes>`,
	})

	text, err := DOCX(data)
	require.NoError(t, err)
	assert.Equal(t, "Write to our press desk mailto:press@acme.co\nJane\tjane.doe [at] acme.co\nbob(at)acme.co", text)
}

func TestDOCXWithoutBody(t *testing.T) {
	_, err := DOCX(zipOf(t, map[string]string{"word/header1.xml": "<w:hdr/>"}))
	assert.ErrorContains(t, err, "no word/document.xml")

	_, err = DOCX([]byte("not a zip"))
	assert.ErrorContains(t, err, "open docx")
}

func TestPPTXSlideOrder(t *testing.T) {
	slide := func(s string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:txBody><a:p><a:r><a:t>` + s + `</a:t></a:r></a:p></p:txBody></p:sld>`
	}
	data := zipOf(t, map[string]string{
		"ppt/slides/slide10.xml": slide("ten"),
		"ppt/slides/slide2.xml":  slide("two bob at acme.co"),
		"ppt/slides/slide1.xml":  slide("one"),
	})

	text, err := PPTX(data)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo bob at acme.co\nten", text)
}

func TestXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Email"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Jane"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "jane.doe@acme.co"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text, err := XLSX(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Name\tEmail\nJane\tjane.doe@acme.co", text)
}

func TestPDFMalformed(t *testing.T) {
	_, err := PDF([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}

func TestTextLatin1(t *testing.T) {
	// "café jane@acme.co" in ISO-8859-1
	data := []byte{'c', 'a', 'f', 0xe9, ' ', 'j', 'a', 'n', 'e', '@', 'a', 'c', 'm', 'e', '.', 'c', 'o'}
	text, err := Text(data, "text/plain; charset=iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "café jane@acme.co", text)
}

func TestExtractorUnsupported(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png", "")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestExtractorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Extract(ctx, []byte("x"), "text/plain", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractorDispatch(t *testing.T) {
	text, err := New().Extract(context.Background(), []byte("<p>a@acme.co</p>"), "text/html", "https://acme.co")
	require.NoError(t, err)
	assert.Equal(t, "a@acme.co", text)
}
