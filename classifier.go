package smworker

import "strings"

// Classifier decides whether a user agent belongs to a known link-preview crawler.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	substrings []string
}

// NewClassifier builds a Classifier from user agent substrings. Entries are
// lower-cased and blanks are dropped.
func NewClassifier(substrings []string) *Classifier {
	c := &Classifier{}
	for _, s := range substrings {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			c.substrings = append(c.substrings, s)
		}
	}
	return c
}

// Match returns the first allow-list entry contained in ua, case-insensitively.
// An empty user agent never matches.
func (c *Classifier) Match(ua string) (string, bool) {
	if ua == "" {
		return "", false
	}
	ua = strings.ToLower(ua)
	for _, s := range c.substrings {
		if strings.Contains(ua, s) {
			return s, true
		}
	}
	return "", false
}

// IsCrawler reports whether ua matches the allow-list.
func (c *Classifier) IsCrawler(ua string) bool {
	_, ok := c.Match(ua)
	return ok
}
