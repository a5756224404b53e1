package workflow

import (
	"context"
	"sync"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// fakeAPI records calls and returns canned results. A non-nil block channel
// holds every call until it is closed.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	exams     []string
	listErr   error
	createErr error
	key       model.AnswerKey
	solErr    error
	uploadErr error
	genErr    error
	reports   []model.Report
	fetchErr  error
	csv       []byte
	dlErr     error
	detail    model.ExamDetail

	started chan struct{}
	block   chan struct{}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) ListExams(context.Context) ([]string, error) {
	f.record("list")
	return f.exams, f.listErr
}

func (f *fakeAPI) CreateExam(_ context.Context, name string) error {
	f.record("create:" + name)
	return f.createErr
}

func (f *fakeAPI) UploadSolution(_ context.Context, exam string, _ model.UploadFile) (model.AnswerKey, error) {
	f.record("solution:" + exam)
	if f.solErr != nil {
		return nil, f.solErr
	}
	return f.key, nil
}

func (f *fakeAPI) UploadResponses(_ context.Context, exam string, _ []model.UploadFile) error {
	f.record("responses:" + exam)
	return f.uploadErr
}

func (f *fakeAPI) GenerateReport(_ context.Context, exam string) error {
	f.record("generate:" + exam)
	return f.genErr
}

func (f *fakeAPI) FetchReport(_ context.Context, exam string) (model.Report, error) {
	f.record("fetch:" + exam)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reports) == 0 {
		return model.Report{}, nil
	}
	r := f.reports[0]
	f.reports = f.reports[1:]
	return r, nil
}

func (f *fakeAPI) DownloadReport(_ context.Context, exam string) ([]byte, error) {
	f.record("download:" + exam)
	return f.csv, f.dlErr
}

func (f *fakeAPI) GetExam(_ context.Context, exam string) (model.ExamDetail, error) {
	f.record("detail:" + exam)
	return f.detail, nil
}
