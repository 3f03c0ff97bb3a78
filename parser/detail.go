package parser

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-crawl-books/models"
)

// ExtractBook builds the record for one detail page. It always returns a
// record; fields whose markup is missing are left nil.
func ExtractBook(doc *goquery.Selection) *models.Book {
	return &models.Book{
		Title:         Title(doc),
		Price:         Price(doc),
		AmountInStock: AmountInStock(doc),
		Rating:        Rating(doc),
		Category:      Category(doc),
		Description:   Description(doc),
		UPC:           UPC(doc),
	}
}

// Title is the first text of the product heading.
func Title(doc *goquery.Selection) *string {
	return textField(doc.FindMatcher(titleSel))
}

// Price is the product price with its currency symbol removed.
func Price(doc *goquery.Selection) *float64 {
	text, ok := firstText(doc.FindMatcher(priceSel))
	if !ok {
		return nil
	}
	value, ok := ParsePrice(text)
	if !ok {
		return nil
	}
	return &value
}

// AmountInStock is the "(N available)" count of the availability line.
func AmountInStock(doc *goquery.Selection) *int {
	for _, text := range ownTexts(doc.FindMatcher(availabilitySel)) {
		if n, ok := ParseAmountInStock(text); ok {
			return &n
		}
	}
	return nil
}

// Rating reads the star-rating word from the first rating class that
// carries one. An unknown word leaves the rating absent.
func Rating(doc *goquery.Selection) *int {
	for _, class := range allAttrs(doc.FindMatcher(ratingSel), "class") {
		if !ratingPattern.MatchString(class) {
			continue
		}
		n, ok := ParseRatingClass(class)
		if !ok {
			return nil
		}
		return &n
	}
	return nil
}

// Category is the third breadcrumb link.
func Category(doc *goquery.Selection) *string {
	return textField(doc.FindMatcher(categorySel))
}

// Description is the paragraph following the description anchor.
func Description(doc *goquery.Selection) *string {
	return textField(doc.FindMatcher(descriptionSel))
}

// UPC is the first cell of the product information table.
func UPC(doc *goquery.Selection) *string {
	return textField(doc.FindMatcher(upcSel))
}

func textField(sel *goquery.Selection) *string {
	text, ok := firstText(sel)
	if !ok || text == "" {
		return nil
	}
	return &text
}
