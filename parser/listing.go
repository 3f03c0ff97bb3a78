package parser

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-crawl-books/models"
)

// ParseListing returns the work items a catalog listing page yields: one
// detail item per product tile with a link, in document order, followed
// by at most one listing item for the next page. Links are resolved
// against the document's <base href> when present, otherwise against
// pageURL. Tiles without a usable link are skipped; a missing next link
// simply ends the pagination.
func ParseListing(doc *goquery.Selection, pageURL *url.URL) []models.WorkItem {
	var items []models.WorkItem
	base := documentBase(doc, pageURL)

	doc.FindMatcher(productTileSel).Each(func(_ int, tile *goquery.Selection) {
		href, ok := firstAttr(tile.FindMatcher(tileLinkSel), "href")
		if !ok {
			return
		}
		abs, ok := resolve(base, href)
		if !ok {
			return
		}
		items = append(items, models.WorkItem{URL: abs, Kind: models.KindDetail})
	})

	if next, ok := NextPage(doc, pageURL); ok {
		items = append(items, models.WorkItem{URL: next, Kind: models.KindListing})
	}
	return items
}

// NextPage returns the resolved "next" pagination link, if the page has one.
func NextPage(doc *goquery.Selection, pageURL *url.URL) (string, bool) {
	href, ok := firstAttr(doc.FindMatcher(nextPageSel), "href")
	if !ok {
		return "", false
	}
	return resolve(documentBase(doc, pageURL), href)
}

// documentBase returns the URL relative links resolve against: the first
// <base href> resolved against pageURL, or pageURL itself.
func documentBase(doc *goquery.Selection, pageURL *url.URL) *url.URL {
	href, ok := firstAttr(doc.FindMatcher(baseSel), "href")
	if !ok {
		return pageURL
	}
	ref, err := url.Parse(href)
	if err != nil {
		return pageURL
	}
	if pageURL == nil {
		return ref
	}
	return pageURL.ResolveReference(ref)
}

func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	ref.Fragment = ""
	return ref.String(), true
}
