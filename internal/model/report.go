package model

import (
	"sort"
	"strconv"
	"unicode"
)

// AnswerKey maps a question label (e.g. "Q1") to its correct choice (e.g. "A").
type AnswerKey map[string]string

// KeyEntry is one question/choice pair of an answer key.
type KeyEntry struct {
	Question string
	Choice   string
}

// Entries returns every key exactly once, in natural label order.
func (k AnswerKey) Entries() []KeyEntry {
	entries := make([]KeyEntry, 0, len(k))
	for _, q := range SortedLabels(k) {
		entries = append(entries, KeyEntry{Question: q, Choice: k[q]})
	}
	return entries
}

// Result is the backend's scoring of one uploaded response image.
type Result struct {
	Score          float64           `json:"score"`
	Choices        map[string]string `json:"choices"`
	CorrectAnswers map[string]string `json:"correct_answers"`
}

// IsCorrect reports whether the selected choice for question q matches the
// correct answer exactly. A question with no correct answer is never correct.
func (r Result) IsCorrect(q string) bool {
	want, ok := r.CorrectAnswers[q]
	if !ok {
		return false
	}
	got, ok := r.Choices[q]
	return ok && got == want
}

// AnswerRow is one rendered answer of a result.
type AnswerRow struct {
	Question string
	Choice   string
	Correct  string // empty when the question has no correct answer
	IsRight  bool
}

// Answers returns one row per selected choice in natural label order.
func (r Result) Answers() []AnswerRow {
	rows := make([]AnswerRow, 0, len(r.Choices))
	for _, q := range SortedLabels(r.Choices) {
		rows = append(rows, AnswerRow{
			Question: q,
			Choice:   r.Choices[q],
			Correct:  r.CorrectAnswers[q],
			IsRight:  r.IsCorrect(q),
		})
	}
	return rows
}

// Report maps a response-image filename to its result.
type Report map[string]Result

// Merge returns the key union of r and other. On overlap the value from other wins.
// Neither input is modified.
func (r Report) Merge(other Report) Report {
	out := make(Report, len(r)+len(other))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Filenames returns the report keys in natural order.
func (r Report) Filenames() []string {
	return SortedLabels(r)
}

// SortedLabels returns the map keys ordered so that embedded numbers compare
// numerically ("Q2" before "Q10").
func SortedLabels[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return naturalLess(keys[i], keys[j]) })
	return keys
}

func naturalLess(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		if unicode.IsDigit(ra[i]) && unicode.IsDigit(rb[j]) {
			si := i
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			sj := j
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}
			na, errA := strconv.Atoi(string(ra[si:i]))
			nb, errB := strconv.Atoi(string(rb[sj:j]))
			if errA == nil && errB == nil && na != nb {
				return na < nb
			}
			if da, db := string(ra[si:i]), string(rb[sj:j]); da != db {
				return da < db
			}
			continue
		}
		if ra[i] != rb[j] {
			return ra[i] < rb[j]
		}
		i++
		j++
	}
	if len(ra)-i != len(rb)-j {
		return len(ra)-i < len(rb)-j
	}
	return a < b
}
