package render

// Plan is the structured article layout produced by the planner. The
// renderer consumes it verbatim; anything missing renders as empty.
type Plan struct {
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	ShowTOC  bool      `json:"show_toc"`
	Sections []Section `json:"sections"`
}

// Section is one titled block of the article body.
type Section struct {
	ID         string   `json:"id"`
	Heading    string   `json:"heading"`
	Paragraphs []string `json:"paragraphs"`
	Bullets    []string `json:"bullets"`
}

// Citation is one numbered source reference in the article footer.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Image is an illustration candidate for the article hero slot.
type Image struct {
	URL     string
	Alt     string
	Caption string
}
