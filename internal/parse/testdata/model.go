package catalog

// Document is one indexed source document.
type Document struct {
	Path    string
	Title   string
	Version int
}

// Index stores documents by path.
type Index interface {
	Lookup(path string) (*Document, error)
	Put(doc *Document) error
}

func newDocument(path, title string) *Document {
	return &Document{Path: path, Title: title, Version: 1}
}
