package workflow

import (
	"context"
	"sync"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// Action names a per-exam board action.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionReport   Action = "report"
	ActionDownload Action = "download"
)

// Download is a report file ready to be saved by the browser.
type Download struct {
	Filename string
	Data     []byte
}

// ReportFilename is the name the browser saves an exam's CSV report under.
func ReportFilename(exam string) string {
	return exam + "_report.csv"
}

// Board is the exam list: every exam with its merged report. Actions on
// different exams are independent; each (exam, action) pair runs one request at a time.
type Board struct {
	api API

	mu       sync.Mutex
	state    model.BoardState
	inflight map[string]bool
}

// NewBoard returns an empty, unloaded board.
func NewBoard(api API) *Board {
	return &Board{api: api, inflight: make(map[string]bool)}
}

// RestoreBoard resumes a board from a saved state.
func RestoreBoard(api API, s model.BoardState) *Board {
	return &Board{api: api, state: s, inflight: make(map[string]bool)}
}

// State returns a copy of the current state.
func (b *Board) State() model.BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state
	s.Exams = make([]model.Exam, len(b.state.Exams))
	copy(s.Exams, b.state.Exams)
	return s
}

// Busy reports whether the given action is in flight for exam.
func (b *Board) Busy(exam string, act Action) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight[exam+"/"+string(act)]
}

// Load fetches the exam list. Every exam starts unprocessed with no report,
// even if the backend already holds one.
func (b *Board) Load(ctx context.Context) error {
	names, err := b.api.ListExams(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = model.BoardState{Loaded: true}
	if err != nil {
		b.state.Notice = noticeFor(err, MsgLoadExams)
		return err
	}
	b.state.Exams = make([]model.Exam, 0, len(names))
	for _, n := range names {
		b.state.Exams = append(b.state.Exams, model.Exam{Name: n})
	}
	return nil
}

// UploadResponses sends response images for exam and, on success, generates
// and fetches the report for it. The report action is held for the whole
// chain so a concurrent GenerateReport cannot send a second generation.
func (b *Board) UploadResponses(ctx context.Context, exam string, files []model.UploadFile) error {
	done, err := b.begin(exam, ActionUpload, ActionReport)
	if err != nil {
		return err
	}
	defer done()

	batch := model.UploadBatch{Kind: model.UploadImages, ExamName: exam, Files: files}
	if err := batch.Validate(); err != nil {
		verr := &ValidationError{MsgID: MsgResponsesRequired}
		b.setNotice(noticeFor(verr, ""), exam)
		return verr
	}

	if err := b.api.UploadResponses(ctx, exam, batch.Files); err != nil {
		b.setNotice(noticeFor(err, MsgUploadResponses), exam)
		return err
	}
	return b.generate(ctx, exam)
}

// GenerateReport generates the report for exam and merges the fetched result.
func (b *Board) GenerateReport(ctx context.Context, exam string) error {
	done, err := b.begin(exam, ActionReport)
	if err != nil {
		return err
	}
	defer done()
	return b.generate(ctx, exam)
}

// generate runs the two round trips. The fetch is only sent when generation succeeded.
func (b *Board) generate(ctx context.Context, exam string) error {
	if err := b.api.GenerateReport(ctx, exam); err != nil {
		b.setNotice(noticeFor(err, MsgGenerateReport), exam)
		return err
	}
	report, err := b.api.FetchReport(ctx, exam)
	if err != nil {
		b.setNotice(noticeFor(err, MsgFetchReport), exam)
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.state.Exams {
		if b.state.Exams[i].Name != exam {
			continue
		}
		b.state.Exams[i].Report = b.state.Exams[i].Report.Merge(report)
		b.state.Exams[i].Processed = true
	}
	b.state.Selected = exam
	return nil
}

// Download fetches the CSV report for exam.
func (b *Board) Download(ctx context.Context, exam string) (Download, error) {
	done, err := b.begin(exam, ActionDownload)
	if err != nil {
		return Download{}, err
	}
	defer done()

	data, err := b.api.DownloadReport(ctx, exam)
	if err != nil {
		b.setNotice(noticeFor(err, MsgDownloadReport), exam)
		return Download{}, err
	}
	return Download{Filename: ReportFilename(exam), Data: data}, nil
}

// Detail lists the files the backend stores for exam. Board state is untouched;
// callers surface failures with NoticeFor(err, MsgLoadExam).
func (b *Board) Detail(ctx context.Context, exam string) (model.ExamDetail, error) {
	return b.api.GetExam(ctx, exam)
}

// begin checks the exam is listed and marks every action in acts in flight.
// It fails with ErrBusy if any of them already is. The returned func clears
// the marks.
func (b *Board) begin(exam string, acts ...Action) (func(), error) {
	keys := make([]string, len(acts))
	for i, act := range acts {
		keys[i] = exam + "/" + string(act)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.state.Exam(exam); !ok {
		b.state.Notice = noticeFor(ErrUnknownExam, "")
		b.state.Notice.Exam = exam
		return nil, ErrUnknownExam
	}
	for _, key := range keys {
		if b.inflight[key] {
			return nil, ErrBusy
		}
	}
	for _, key := range keys {
		b.inflight[key] = true
	}
	b.state.Notice = nil
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, key := range keys {
			delete(b.inflight, key)
		}
	}, nil
}

func (b *Board) setNotice(n *model.Notice, exam string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n.Exam = exam
	b.state.Notice = n
}
