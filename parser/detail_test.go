package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailPage = `<!DOCTYPE html>
<html><head><title>A Light in the Attic | Books to Scrape</title></head>
<body>
<ul class="breadcrumb">
  <li><a href="../index.html">Home</a></li>
  <li><a href="../category/books_1/index.html">Books</a></li>
  <li><a href="../category/books/poetry_23/index.html">Poetry</a></li>
  <li class="active">A Light in the Attic</li>
</ul>
<article class="product_page">
  <div class="row">
    <div class="col-sm-6 product_main">
      <h1>A Light in the Attic</h1>
      <p class="price_color">£51.77</p>
      <p class="instock availability">
        <i class="icon-ok"></i>
        In stock (22 available)
      </p>
      <p class="star-rating Three">
        <i class="icon-star"></i>
      </p>
    </div>
  </div>
  <div id="product_description" class="sub-header"><h2>Product Description</h2></div>
  <p>It's hard to imagine a world without A Light in the Attic.</p>
  <div class="sub-header"><h2>Product Information</h2></div>
  <table class="table table-striped">
    <tr><th>UPC</th><td>a897fe39b1053632</td></tr>
    <tr><th>Product Type</th><td>Books</td></tr>
  </table>
</article>
</body></html>`

func mustDoc(t *testing.T, body string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc.Selection
}

func TestExtractBookComplete(t *testing.T) {
	book := ExtractBook(mustDoc(t, detailPage))
	require.NotNil(t, book)

	require.NotNil(t, book.Title)
	assert.Equal(t, "A Light in the Attic", *book.Title)
	require.NotNil(t, book.Price)
	assert.InDelta(t, 51.77, *book.Price, 1e-9)
	require.NotNil(t, book.AmountInStock)
	assert.Equal(t, 22, *book.AmountInStock)
	require.NotNil(t, book.Rating)
	assert.Equal(t, 3, *book.Rating)
	require.NotNil(t, book.Category)
	assert.Equal(t, "Poetry", *book.Category)
	require.NotNil(t, book.Description)
	assert.Equal(t, "It's hard to imagine a world without A Light in the Attic.", *book.Description)
	require.NotNil(t, book.UPC)
	assert.Equal(t, "a897fe39b1053632", *book.UPC)
	assert.Empty(t, MissingFields(book))
}

func TestExtractBookEmptyPage(t *testing.T) {
	book := ExtractBook(mustDoc(t, "<html><body><p>nothing here</p></body></html>"))
	require.NotNil(t, book, "a record is emitted even when every field is absent")
	assert.Nil(t, book.Title)
	assert.Nil(t, book.Price)
	assert.Nil(t, book.AmountInStock)
	assert.Nil(t, book.Rating)
	assert.Nil(t, book.Category)
	assert.Nil(t, book.Description)
	assert.Nil(t, book.UPC)
}

// Each case removes one field's markup; the other six must still be read.
func TestExtractBookFieldsAreIndependent(t *testing.T) {
	tests := []struct {
		field  string
		remove string
	}{
		{field: "title", remove: "<h1>A Light in the Attic</h1>"},
		{field: "price", remove: `<p class="price_color">£51.77</p>`},
		{field: "amount_in_stock", remove: "In stock (22 available)"},
		{field: "rating", remove: `<p class="star-rating Three">`},
		{field: "category", remove: `<li><a href="../category/books/poetry_23/index.html">Poetry</a></li>`},
		{field: "description", remove: `<div id="product_description" class="sub-header"><h2>Product Description</h2></div>`},
		{field: "upc", remove: `<table class="table table-striped">`},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			require.Contains(t, detailPage, tt.remove)
			page := strings.Replace(detailPage, tt.remove, "", 1)

			book := ExtractBook(mustDoc(t, page))
			assert.Equal(t, []string{tt.field}, MissingFields(book))
		})
	}
}

func TestRatingUnknownWord(t *testing.T) {
	page := strings.Replace(detailPage, "star-rating Three", "star-rating Zero", 1)
	assert.Nil(t, Rating(mustDoc(t, page)))
}

func TestRatingUsesFirstMatchingClass(t *testing.T) {
	page := `<html><body>
<p class="star-rating"></p>
<p class="star-rating Four"></p>
<p class="star-rating One"></p>
</body></html>`
	rating := Rating(mustDoc(t, page))
	require.NotNil(t, rating)
	assert.Equal(t, 4, *rating)

	n, ok := ParseRatingClass("star-rating Four")
	require.True(t, ok)
	assert.Equal(t, *rating, n)
}

func TestAmountInStockWithoutCount(t *testing.T) {
	page := strings.Replace(detailPage, "In stock (22 available)", "In stock", 1)
	assert.Nil(t, AmountInStock(mustDoc(t, page)))
}

func TestTitleIsVerbatim(t *testing.T) {
	page := strings.Replace(detailPage, "<h1>A Light in the Attic</h1>", "<h1>  Sapiens: A Brief History  </h1>", 1)
	title := Title(mustDoc(t, page))
	require.NotNil(t, title)
	assert.Equal(t, "  Sapiens: A Brief History  ", *title)
}

func TestCategoryNeedsThirdCrumb(t *testing.T) {
	page := `<ul class="breadcrumb"><li><a href="/">Home</a></li><li><a href="/books">Books</a></li></ul>`
	assert.Nil(t, Category(mustDoc(t, page)))
}

func TestUPCFirstRowOnly(t *testing.T) {
	page := `<table class="table table-striped"><tr><th>UPC</th></tr><tr><td>second-row</td></tr></table>`
	assert.Nil(t, UPC(mustDoc(t, page)), "first row has no cell")
}
