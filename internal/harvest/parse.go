// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// ErrNoTitle reports an abstract page without a usable title. Title is
// the storage key, so such documents are skipped.
var ErrNoTitle = errors.New("document page has no title")

// indexSelector matches abstract-page links on a yearly index page.
var indexSelector = `ul.paper-list li a[href*='-Abstract']`

// pdfSelectors are the PDF link patterns, tried in order; the first
// match wins. Older proceedings use Paper.pdf, newer ones
// Paper-Conference.pdf.
var pdfSelectors = []string{
	`a.btn[href*="Paper.pdf"]`,
	`a.btn[href*="Paper-Conference.pdf"]`,
}

const maxTitleLen = 200

var unsafeTitleChars = regexp.MustCompile(`[/\\:*?"<>|]`)

// CleanTitle removes characters that are unsafe in filenames, trims
// surrounding whitespace, and truncates to 200 characters. The result
// serves as both the storage key and the asset filename stem.
func CleanTitle(s string) string {
	cleaned := unsafeTitleChars.ReplaceAllString(s, "")
	cleaned = strings.TrimSpace(cleaned)
	if r := []rune(cleaned); len(r) > maxTitleLen {
		cleaned = string(r[:maxTitleLen])
	}
	return cleaned
}

// ParseIndex extracts document references from a yearly index page, in
// page order. Link text becomes the cleaned title; hrefs are resolved
// against baseURL. Links without an href are dropped.
func ParseIndex(html, baseURL string, year int) ([]types.DocumentRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing index page: %w", err)
	}

	var refs []types.DocumentRef
	doc.Find(indexSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		refs = append(refs, types.DocumentRef{
			Title:     CleanTitle(sel.Text()),
			SourceURL: joinURL(baseURL, href),
			Year:      year,
		})
	})
	return refs, nil
}

// Document holds the fields extracted from one abstract page.
type Document struct {
	// Title is the cleaned page title.
	Title string

	// PDFHref is the PDF link href exactly as found on the page, or ""
	// when no selector alternative matched.
	PDFHref string

	// Authors and Abstract hold the section texts, or their sentinels
	// when the page lacks the section.
	Authors  string
	Abstract string
}

// ParseDocument extracts metadata from an abstract page. A page whose
// <title> is empty after cleaning yields ErrNoTitle; missing authors,
// abstract, or PDF link degrade to sentinels rather than errors.
func ParseDocument(html string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Document{}, fmt.Errorf("parsing document page: %w", err)
	}

	title := CleanTitle(doc.Find("title").First().Text())
	if title == "" {
		return Document{}, ErrNoTitle
	}

	d := Document{
		Title:    title,
		Authors:  types.AuthorsUnavailable,
		Abstract: types.AbstractUnavailable,
	}

	for _, sel := range pdfSelectors {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && href != "" {
			d.PDFHref = href
			break
		}
	}

	if text, ok := sectionText(doc, "Authors"); ok {
		d.Authors = text
	}
	if text, ok := sectionText(doc, "Abstract"); ok {
		d.Abstract = text
	}
	return d, nil
}

// sectionText locates the h4 heading with the given text and returns
// the trimmed text of the following paragraph. The second return value
// is false when the heading or its paragraph is missing.
func sectionText(doc *goquery.Document, heading string) (string, bool) {
	var text string
	found := false
	doc.Find("h4").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) != heading {
			return true
		}
		p := sel.NextAllFiltered("p").First()
		if p.Length() > 0 {
			text = strings.TrimSpace(p.Text())
			found = true
		}
		return false
	})
	return text, found
}

// joinURL resolves href against base, tolerating absolute hrefs.
func joinURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return base + href
	}
	h, err := url.Parse(href)
	if err != nil {
		return base + href
	}
	return b.ResolveReference(h).String()
}
