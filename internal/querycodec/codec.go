// Package querycodec converts between string mappings and canonical
// query strings.
//
// Encode is a pure function of the set of entries: keys are emitted in
// ascending byte order, so two callers building the same mapping in a
// different order always produce the same text. Decode does not depend on
// segment order either; when a key repeats, the last occurrence wins.
package querycodec

import (
	"net/url"
	"sort"
	"strings"
)

// Decode splits text on '&' and every segment on its first '='. Keys and
// values are percent-decoded with '+' read as a space. Empty segments are
// skipped and a segment without '=' decodes to an empty value.
func Decode(text string) map[string]string {
	values := make(map[string]string)

	for _, segment := range strings.Split(text, "&") {
		if segment == "" {
			continue
		}

		key, value, _ := strings.Cut(segment, "=")
		values[unescape(key)] = unescape(value)
	}

	return values
}

// Encode joins the escaped key=value pairs of values with '&', ordered by
// key.
func Encode(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values[key]))
	}

	return b.String()
}

// EscapePath percent-encodes every byte of s except unreserved characters
// and '/'. Spaces become %20.
func EscapePath(s string) string {
	segments := strings.Split(s, "/")
	for i, segment := range segments {
		// QueryEscape already escapes a literal '+', so every '+' left is a space.
		segments[i] = strings.ReplaceAll(url.QueryEscape(segment), "+", "%20")
	}
	return strings.Join(segments, "/")
}

// unescape keeps the raw text when it is not a valid escape sequence.
func unescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
