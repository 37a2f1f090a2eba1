package searchapi

// Response is the subset of the Custom Search JSON payload the pipeline reads.
// A missing Items field means the page had no hits.
type Response struct {
	Items []Item `json:"items"`
}

type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
