// Package sitemapxml serializes variants into sitemap protocol documents.
package sitemapxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// XML namespaces used in generated documents.
const (
	NamespaceSitemap = "http://www.sitemaps.org/schemas/sitemap/0.9"
	NamespaceXHTML   = "http://www.w3.org/1999/xhtml"
	NamespaceImage   = "http://www.google.com/schemas/sitemap-image/1.1"
)

// LastModLayout is the W3C datetime layout used for lastmod values.
const LastModLayout = "2006-01-02T15:04:05-07:00"

// Writer renders urlset and sitemapindex documents. Output is deterministic for equal input.
type Writer struct {
	generatedBy string
}

// NewWriter creates a Writer that stamps documents with a generated-by comment.
// An empty value omits the comment.
func NewWriter(generatedBy string) *Writer {
	for strings.Contains(generatedBy, "--") {
		generatedBy = strings.ReplaceAll(generatedBy, "--", "-")
	}
	return &Writer{generatedBy: strings.TrimSuffix(generatedBy, "-")}
}

// FormatLastMod renders t in UTC with an explicit offset.
func FormatLastMod(t time.Time) string {
	return t.UTC().Format(LastModLayout)
}

// FormatPriority renders a priority with at least one decimal place.
func FormatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// DeltaURL is the public location of one delta of a context.
func DeltaURL(base, context string, deltaIndex int) string {
	return fmt.Sprintf("%s/%s/%d", strings.TrimRight(base, "/"), context, deltaIndex)
}

type encoder struct {
	buf bytes.Buffer
	enc *xml.Encoder
	err error
}

func (w *Writer) newEncoder() *encoder {
	e := &encoder{}
	e.buf.WriteString(xml.Header)
	if w.generatedBy != "" {
		e.buf.WriteString("<!--" + w.generatedBy + "-->\n")
	}
	e.enc = xml.NewEncoder(&e.buf)
	e.enc.Indent("", "  ")
	return e
}

func (e *encoder) token(t xml.Token) {
	if e.err != nil {
		return
	}
	e.err = e.enc.EncodeToken(t)
}

func (e *encoder) start(name string, attrs ...xml.Attr) {
	e.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (e *encoder) end(name string) {
	e.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (e *encoder) element(name, text string) {
	e.start(name)
	e.token(xml.CharData(text))
	e.end(name)
}

func (e *encoder) bytes() ([]byte, error) {
	if e.err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", e.err)
	}
	if err := e.enc.Flush(); err != nil {
		return nil, fmt.Errorf("flush sitemap: %w", err)
	}
	e.buf.WriteByte('\n')
	return e.buf.Bytes(), nil
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// URLSet renders one urlset document. Alternate links and the xhtml namespace are
// written only when hreflang is true.
func (w *Writer) URLSet(variants []domain.Variant, hreflang bool) ([]byte, error) {
	e := w.newEncoder()

	attrs := []xml.Attr{attr("xmlns", NamespaceSitemap)}
	if hreflang {
		attrs = append(attrs, attr("xmlns:xhtml", NamespaceXHTML))
	}
	attrs = append(attrs, attr("xmlns:image", NamespaceImage))
	e.start("urlset", attrs...)

	for i := range variants {
		writeURL(e, &variants[i], hreflang)
	}

	e.end("urlset")
	return e.bytes()
}

func writeURL(e *encoder, v *domain.Variant, hreflang bool) {
	e.start("url")
	e.element("loc", v.URL)

	if hreflang {
		for _, alt := range v.Alternates {
			e.start("xhtml:link",
				attr("rel", "alternate"),
				attr("hreflang", alt.Language),
				attr("href", alt.URL),
			)
			e.end("xhtml:link")
		}
	}

	if v.LastModified != nil {
		e.element("lastmod", FormatLastMod(*v.LastModified))
	}
	if v.ChangeFrequency != "" {
		e.element("changefreq", string(v.ChangeFrequency))
	}
	if v.Priority != nil {
		e.element("priority", FormatPriority(*v.Priority))
	}

	for _, img := range v.Images {
		e.start("image:image")
		e.element("image:loc", img)
		e.end("image:image")
	}

	e.end("url")
}

// IndexEntry is one child sitemap of an index document.
type IndexEntry struct {
	Loc     string
	LastMod time.Time
}

// Index renders a sitemapindex document.
func (w *Writer) Index(entries []IndexEntry) ([]byte, error) {
	e := w.newEncoder()
	e.start("sitemapindex", attr("xmlns", NamespaceSitemap))

	for _, entry := range entries {
		e.start("sitemap")
		e.element("loc", entry.Loc)
		if !entry.LastMod.IsZero() {
			e.element("lastmod", FormatLastMod(entry.LastMod))
		}
		e.end("sitemap")
	}

	e.end("sitemapindex")
	return e.bytes()
}
