package stockapi

import (
	"fmt"
	"net/url"
	"strings"
)

// Profile is the URL shape of the stock backend in one deployment. Local
// development serves the API at the origin root; production nests it under an
// extra path segment.
type Profile struct {
	Prefix    string // path prefix below the origin, e.g. "/stock"
	ItemsPath string // item listing endpoint, e.g. "/items"
}

// Routes builds backend URLs. It is resolved once at startup.
type Routes struct {
	base      *url.URL
	itemsPath string
}

// NewRoutes resolves the base URL for origin and profile.
func NewRoutes(origin string, p Profile) (Routes, error) {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return Routes{}, fmt.Errorf("parsing backend origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Routes{}, fmt.Errorf("backend origin %q must be absolute", origin)
	}

	prefix := strings.Trim(p.Prefix, "/")
	if prefix != "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + prefix
	}

	items := strings.Trim(p.ItemsPath, "/")
	if items == "" {
		items = "items"
	}

	return Routes{base: u, itemsPath: items}, nil
}

// Base returns the resolved base URL.
func (r Routes) Base() string {
	return r.base.String()
}

// url joins escaped path segments onto the base and attaches the query.
func (r Routes) url(query url.Values, segments ...string) string {
	u := *r.base
	path := strings.TrimRight(u.Path, "/")
	raw := strings.TrimRight(u.EscapedPath(), "/")
	for _, s := range segments {
		path += "/" + s
		raw += "/" + url.PathEscape(s)
	}
	u.Path = path
	u.RawPath = raw
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (r Routes) stock(associationID string) string {
	return r.url(nil, "stock", associationID)
}

func (r Routes) stocks() string {
	return r.url(nil, "stock")
}

func (r Routes) items(query url.Values) string {
	return r.url(query, r.itemsPath)
}

func (r Routes) item(query url.Values, segments ...string) string {
	return r.url(query, append([]string{"item"}, segments...)...)
}
