package domain

import (
	"regexp"
	"strings"
)

// Attribute is one key=value pair of an attribute-value connection string.
// Keys are lower-cased on parse.
type Attribute struct {
	Key   string
	Value string
}

// Attributes is an ordered attribute-value connection string.
type Attributes []Attribute

// Get returns the value for key (case-insensitive) and whether it was present.
func (a Attributes) Get(key string) (string, bool) {
	key = strings.ToLower(key)
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// First returns the value of the first present key among keys.
func (a Attributes) First(keys ...string) string {
	for _, k := range keys {
		if v, ok := a.Get(k); ok {
			return v
		}
	}
	return ""
}

var attributeForm = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z0-9 _]*\s*=`)

// IsAttributeForm reports whether s looks like key=value;key=value rather than
// a compact DSN or URL.
func IsAttributeForm(s string) bool {
	return attributeForm.MatchString(s)
}

// ParseAttributes splits an attribute-value connection string. Empty segments
// and segments without '=' are skipped.
func ParseAttributes(s string) Attributes {
	var out Attributes
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out = append(out, Attribute{Key: k, Value: strings.TrimSpace(v)})
	}
	return out
}

var canonicalKeys = []string{"server", "port", "database", "uid", "pwd"}

// FormatAttributes renders attrs as key=value; pairs. The canonical keys come
// first in server, port, database, uid, pwd order; the rest keep input order.
func FormatAttributes(attrs Attributes) string {
	var b strings.Builder
	seen := make(map[int]bool, len(attrs))
	for _, ck := range canonicalKeys {
		for i, a := range attrs {
			if a.Key == ck && !seen[i] {
				writeAttr(&b, a)
				seen[i] = true
			}
		}
	}
	for i, a := range attrs {
		if !seen[i] {
			writeAttr(&b, a)
		}
	}
	return b.String()
}

func writeAttr(b *strings.Builder, a Attribute) {
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value)
	b.WriteByte(';')
}
