package views

// PageMeta carries the resolved OpenGraph, Twitter Card and Schema.org values
// into the crawler page template.
type PageMeta struct {
	SiteName      string // <title>
	Title         string
	Description   string
	Image         string // absolute image URL
	URL           string // og:url, may be empty
	FacebookAppID string
}
