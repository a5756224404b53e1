package model

import "time"

// ReportExport is the JSON structure printed by `sheetgrader report --format json`
// and served by the report API.
type ReportExport struct {
	Exam        string       `json:"exam"`
	GeneratedAt time.Time    `json:"generated_at"`
	NumResults  int          `json:"num_results"`
	Results     []FileResult `json:"results"`
}

// FileResult holds one response image's result for export.
type FileResult struct {
	Filename string           `json:"filename"`
	Score    float64          `json:"score"`
	Correct  int              `json:"correct"`
	Answers  []ExportedAnswer `json:"answers"`
}

// ExportedAnswer is a single answer in an exported result.
type ExportedAnswer struct {
	Question string `json:"question"`
	Choice   string `json:"choice"`
	Correct  string `json:"correct,omitempty"`
	IsRight  bool   `json:"is_right"`
}

// NewReportExport flattens a report into export rows in natural filename order.
func NewReportExport(exam string, r Report, at time.Time) ReportExport {
	out := ReportExport{Exam: exam, GeneratedAt: at, NumResults: len(r)}
	for _, name := range r.Filenames() {
		res := r[name]
		fr := FileResult{Filename: name, Score: res.Score}
		for _, row := range res.Answers() {
			if row.IsRight {
				fr.Correct++
			}
			fr.Answers = append(fr.Answers, ExportedAnswer{
				Question: row.Question,
				Choice:   row.Choice,
				Correct:  row.Correct,
				IsRight:  row.IsRight,
			})
		}
		out.Results = append(out.Results, fr)
	}
	return out
}
