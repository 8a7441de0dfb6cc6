package catalog

import "fmt"

// Catalog publishes documents into an Index.
type Catalog struct {
	index Index
}

// NewCatalog creates a Catalog over index.
func NewCatalog(index Index) *Catalog {
	return &Catalog{index: index}
}

// Find returns the document at path.
func (c *Catalog) Find(path string) (*Document, error) {
	doc, err := c.index.Lookup(path)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", path, err)
	}
	return doc, nil
}

// Publish stores a new document.
func (c *Catalog) Publish(path, title string) (*Document, error) {
	doc := newDocument(path, title)
	if err := c.index.Put(doc); err != nil {
		return nil, fmt.Errorf("publish %s: %w", path, err)
	}
	return doc, nil
}
