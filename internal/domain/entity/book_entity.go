package entity

// Book is a catalog entry keyed by its ISBN. The ISBN is supplied by the caller and never changes.
type Book struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Pages  int    `json:"pages"`
}
