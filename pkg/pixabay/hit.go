// Package pixabay fetches pages of image search results from the Pixabay API.
package pixabay

import "strings"

// Hit is one image in a search response. Fields not used for display are
// dropped during decoding.
type Hit struct {
	ID            int    `json:"id"`
	PageURL       string `json:"pageURL"`
	Tags          string `json:"tags"`
	PreviewURL    string `json:"previewURL"`
	WebformatURL  string `json:"webformatURL"`
	LargeImageURL string `json:"largeImageURL"`
	Views         int    `json:"views"`
	Downloads     int    `json:"downloads"`
	Likes         int    `json:"likes"`
	Comments      int    `json:"comments"`
	User          string `json:"user"`
}

// TagList splits the comma-separated tags.
func (h Hit) TagList() []string {
	var tags []string
	for _, t := range strings.Split(h.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// SearchResponse is the body of a search request.
type SearchResponse struct {
	// Total is the number of matches in the whole Pixabay database.
	Total int `json:"total"`

	// TotalHits is the number of matches accessible through the API.
	TotalHits int `json:"totalHits"`

	Hits []Hit `json:"hits"`
}
