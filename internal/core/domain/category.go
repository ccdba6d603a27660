package domain

import (
	"strings"
	"unicode"
)

// Category buckets statements for cost aggregation.
type Category int

const (
	CategoryOther Category = iota
	CategoryInsert
	CategoryQuery
	CategoryUpdate
	CategoryDelete

	numCategories
)

// Categories lists every category in reporting order.
var Categories = []Category{CategoryInsert, CategoryQuery, CategoryUpdate, CategoryDelete, CategoryOther}

func (c Category) String() string {
	switch c {
	case CategoryInsert:
		return "insert"
	case CategoryQuery:
		return "query"
	case CategoryUpdate:
		return "update"
	case CategoryDelete:
		return "delete"
	default:
		return "other"
	}
}

// Classifier maps a statement to its category.
type Classifier interface {
	Classify(statement string) Category
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(statement string) Category

func (f ClassifierFunc) Classify(statement string) Category { return f(statement) }

// PrefixClassifier classifies by the statement's leading keyword.
type PrefixClassifier struct{}

func (PrefixClassifier) Classify(statement string) Category {
	return ClassifyPrefix(statement)
}

// ClassifyPrefix looks at the first keyword, ignoring leading whitespace and
// opening parentheses.
func ClassifyPrefix(statement string) Category {
	s := strings.TrimLeftFunc(statement, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end >= 0 {
		s = s[:end]
	}
	switch strings.ToUpper(s) {
	case "INSERT":
		return CategoryInsert
	case "SELECT", "QUERY":
		return CategoryQuery
	case "UPDATE":
		return CategoryUpdate
	case "DELETE":
		return CategoryDelete
	default:
		return CategoryOther
	}
}
