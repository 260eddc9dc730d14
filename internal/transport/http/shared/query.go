package shared

import (
	"net/http"
	"strconv"
	"strings"
)

type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit and offset, ignoring malformed values and capping
// limit at maxLimit.
func ParsePage(r *http.Request, defaultLimit, maxLimit int) Page {
	q := r.URL.Query()
	page := Page{Limit: defaultLimit}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		page.Limit = min(v, maxLimit)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		page.Offset = v
	}
	return page
}

// QueryUpper returns the trimmed, upper-cased query parameter. Statuses and
// role names are stored upper case.
func QueryUpper(r *http.Request, key string) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get(key)))
}
