// Package parser maps fetched catalog pages to work items and book records.
//
// Nothing in this package returns an error: a selector that matches nothing
// turns into a skipped work item or an absent record field.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/go-crawl-books/models"
)

// ratingWords is the rating vocabulary used by the star-rating class.
var ratingWords = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

var (
	stockPattern  = regexp.MustCompile(`\((\d+) available\)`)
	ratingPattern = regexp.MustCompile(`star-rating (\w+)`)
)

// RatingToNumeric converts a rating word to the 1-5 scale.
func RatingToNumeric(word string) (int, bool) {
	n, ok := ratingWords[word]
	return n, ok
}

// ParsePrice drops the one-character currency prefix and parses the rest.
// Input is expected to be well formed; anything else reports false.
func ParsePrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	_, size := utf8.DecodeRuneInString(text)
	value, err := strconv.ParseFloat(strings.TrimSpace(text[size:]), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseAmountInStock pulls the count out of "In stock (22 available)".
func ParseAmountInStock(text string) (int, bool) {
	m := stockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseRatingClass resolves a class attribute such as "star-rating Three".
func ParseRatingClass(class string) (int, bool) {
	m := ratingPattern.FindStringSubmatch(class)
	if m == nil {
		return 0, false
	}
	return RatingToNumeric(m[1])
}

// MissingFields lists the absent record keys of b in output order.
func MissingFields(b *models.Book) []string {
	if b == nil {
		return append([]string(nil), models.RecordKeys...)
	}
	present := []bool{
		b.Title != nil,
		b.Price != nil,
		b.AmountInStock != nil,
		b.Rating != nil,
		b.Category != nil,
		b.Description != nil,
		b.UPC != nil,
	}
	var missing []string
	for i, ok := range present {
		if !ok {
			missing = append(missing, models.RecordKeys[i])
		}
	}
	return missing
}
