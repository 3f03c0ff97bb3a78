package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Catalog markup, compiled once and shared read-only.
var (
	productTileSel = cascadia.MustCompile(".product_pod")
	tileLinkSel    = cascadia.MustCompile("h3 > a")
	nextPageSel    = cascadia.MustCompile("li.next a")
	baseSel        = cascadia.MustCompile("base[href]")

	titleSel        = cascadia.MustCompile("div.product_main h1")
	priceSel        = cascadia.MustCompile("p.price_color")
	availabilitySel = cascadia.MustCompile("p.instock.availability")
	ratingSel       = cascadia.MustCompile("p.star-rating")
	categorySel     = cascadia.MustCompile("ul.breadcrumb li:nth-child(3) a")
	descriptionSel  = cascadia.MustCompile("div#product_description ~ p")
	upcSel          = cascadia.MustCompile("table.table.table-striped tr:nth-child(1) td")
)

// firstText returns the first text node that is a direct child of any
// element in sel, in document order.
func firstText(sel *goquery.Selection) (string, bool) {
	for _, node := range sel.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				return c.Data, true
			}
		}
	}
	return "", false
}

// ownTexts returns every direct child text node of the elements in sel.
func ownTexts(sel *goquery.Selection) []string {
	var texts []string
	for _, node := range sel.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				texts = append(texts, c.Data)
			}
		}
	}
	return texts
}

// firstAttr returns attr of the first element in sel that carries it. An
// empty value counts as absent.
func firstAttr(sel *goquery.Selection, attr string) (string, bool) {
	for _, node := range sel.Nodes {
		for _, a := range node.Attr {
			if a.Key == attr && a.Namespace == "" {
				return a.Val, a.Val != ""
			}
		}
	}
	return "", false
}

// allAttrs returns attr for every element in sel that carries it.
func allAttrs(sel *goquery.Selection, attr string) []string {
	var values []string
	for _, node := range sel.Nodes {
		for _, a := range node.Attr {
			if a.Key == attr && a.Namespace == "" {
				values = append(values, a.Val)
				break
			}
		}
	}
	return values
}
