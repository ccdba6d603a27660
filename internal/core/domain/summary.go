package domain

import (
	"log/slog"
	"time"
)

// Summary aggregates the costs of one context at defer time.
type Summary struct {
	Counts [numCategories]int
	Costs  [numCategories]time.Duration

	// Total is the context lifetime, creation to the end of Defer.
	Total time.Duration
	// Self is the time spent inside Defer itself.
	Self time.Duration
	// Other is Total minus Self minus every category cost: time the context
	// was open but not executing statements.
	Other time.Duration
}

// Summarize scans costs in order and buckets them by category.
func Summarize(costs []*Cost, classifier Classifier, created, deferStart, now time.Time) Summary {
	if classifier == nil {
		classifier = PrefixClassifier{}
	}
	var s Summary
	var statements time.Duration
	for _, c := range costs {
		cat := classifier.Classify(c.Statement)
		s.Counts[cat]++
		s.Costs[cat] += c.Elapsed()
		statements += c.Elapsed()
	}
	s.Total = now.Sub(created)
	s.Self = now.Sub(deferStart)
	s.Other = s.Total - s.Self - statements
	return s
}

// Count returns the number of statements in cat.
func (s Summary) Count(cat Category) int { return s.Counts[cat] }

// Cost returns the summed elapsed time of statements in cat.
func (s Summary) Cost(cat Category) time.Duration { return s.Costs[cat] }

// Statements is the total number of recorded statements.
func (s Summary) Statements() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

func (s Summary) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 2*len(Categories)+3)
	for _, cat := range Categories {
		attrs = append(attrs,
			slog.Int(cat.String()+".count", s.Counts[cat]),
			slog.Float64(cat.String()+".ms", Millis(s.Costs[cat])),
		)
	}
	attrs = append(attrs,
		slog.Float64("total.ms", Millis(s.Total)),
		slog.Float64("self.ms", Millis(s.Self)),
		slog.Float64("other.ms", Millis(s.Other)),
	)
	return slog.GroupValue(attrs...)
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
