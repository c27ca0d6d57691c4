package domain

import "time"

// ContentKind selects a content folder.
type ContentKind string

const (
	KindBlog   ContentKind = "blog"
	KindGuides ContentKind = "guides"
)

// ContentDoc is a document summary as listed by the content vendor.
type ContentDoc struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Block is one node of a content document.
type Block struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Content   string  `json:"content"`
	TextStyle string  `json:"textStyle"`
	ListStyle string  `json:"listStyle"`
	Checked   bool    `json:"checked"`
	Language  string  `json:"language"`
	URL       string  `json:"url"`
	AltText   string  `json:"altText"`
	Blocks    []Block `json:"blocks"`
}

type ArticleSummary struct {
	ID        string      `json:"id"`
	Kind      ContentKind `json:"kind"`
	Slug      string      `json:"slug"`
	Title     string      `json:"title"`
	Excerpt   string      `json:"excerpt"`
	CoverURL  string      `json:"coverImage,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type Article struct {
	ArticleSummary
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}
