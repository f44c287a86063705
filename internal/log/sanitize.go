package log

import "net/url"

// SanitizeURL strips user info and the query string from a URL before it
// is logged. Release asset URLs can carry signed tokens in the query.
// Unparseable input is returned as "<invalid url>".
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
