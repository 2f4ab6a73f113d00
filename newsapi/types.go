package newsapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Response is the body returned by the get-individual-news endpoint.
type Response struct {
	NewsData *NewsData `json:"news_data"`
}

// NewsData is the subset of a news record the crawler page needs.
type NewsData struct {
	ID         ID     `json:"id"`
	Title      string `json:"title"`
	SmallDecp  string `json:"small_decp"`
	CoverImage string `json:"cover_image"`
}

// Valid reports whether the record carries an identifier.
func (n *NewsData) Valid() bool {
	return n != nil && n.ID != ""
}

// ID is a news identifier that the backend may encode as a string or a number.
// A numeric zero, an empty string and null all decode to the empty ID.
type ID string

// UnmarshalJSON accepts JSON strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("news id: %w", err)
	}
	if f, err := strconv.ParseFloat(n.String(), 64); err == nil && f == 0 {
		*id = ""
		return nil
	}
	*id = ID(n.String())
	return nil
}
