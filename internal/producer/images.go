package producer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxImagesPerURL is the image sitemap extension limit per url entry.
const maxImagesPerURL = 1000

// ExtractImages returns absolute image URLs from the explicit list followed by the
// img elements of an HTML body. Duplicates and data URIs are dropped.
func ExtractImages(baseURL string, explicit []string, body string) []string {
	base, baseErr := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if baseErr != nil {
		base = nil
	}

	seen := make(map[string]bool)
	var images []string
	add := func(raw string) {
		abs := resolveImage(base, raw)
		if abs == "" || seen[abs] || len(images) >= maxImagesPerURL {
			return
		}
		seen[abs] = true
		images = append(images, abs)
	}

	for _, raw := range explicit {
		add(raw)
	}

	if strings.TrimSpace(body) == "" {
		return images
	}
	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(body))
	if parseErr != nil {
		return images
	}
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		add(src)
	})

	return images
}

func resolveImage(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, parseErr := url.Parse(raw)
	if parseErr != nil {
		return ""
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return ""
		}
		return ref.String()
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
