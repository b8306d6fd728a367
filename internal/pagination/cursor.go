// Package pagination implements opaque keyset cursors for insertion-ordered
// listings.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	cursorVersion = 1
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor points just past the last item of a page. Seq is the item's
// insertion sequence number; ID guards against a cursor being replayed
// against a different listing.
type Cursor struct {
	Seq int64  `json:"s"`
	ID  string `json:"i"`
}

type wireCursor struct {
	V int `json:"v"`
	Cursor
}

// Encode returns the URL-safe token handed to clients.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(wireCursor{V: cursorVersion, Cursor: c})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a token produced by Encode. An empty token is the first
// page and decodes to nil.
func Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var w wireCursor
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, ErrInvalidCursor
	}
	if w.V != cursorVersion || w.ID == "" || w.Seq < 0 {
		return nil, ErrInvalidCursor
	}
	return &w.Cursor, nil
}

// ClampLimit maps a requested page size into [1, MaxLimit], using
// DefaultLimit when none was asked for.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Trim takes the limit+1 rows a store returned and cuts them to one page.
// When the extra row was present it returns the cursor of the page's last
// item and more=true.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) (page []T, next string, more bool) {
	if len(rows) <= limit {
		return rows, "", false
	}
	page = rows[:limit]
	return page, cursorOf(page[limit-1]).Encode(), true
}
