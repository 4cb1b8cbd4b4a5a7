package port

// Document is one unit of the corpus handed to the index builder.
// Tokens is called from a build worker; an error skips the document.
type Document interface {
	ID() string

	Tokens() ([]string, error)
}
