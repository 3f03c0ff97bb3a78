package models

// Kind tags a work item with the handler that processes its fetched page.
type Kind string

const (
	// KindListing marks a catalog listing page.
	KindListing Kind = "listing"
	// KindDetail marks a product detail page.
	KindDetail Kind = "detail"
)

// WorkItem is a pending fetch: an absolute URL plus the handler tag.
type WorkItem struct {
	URL  string
	Kind Kind
}

// Valid reports whether k is a known tag.
func (k Kind) Valid() bool {
	return k == KindListing || k == KindDetail
}

func (k Kind) String() string {
	return string(k)
}
