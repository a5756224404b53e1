package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/omr"
)

func loadedBoard(t *testing.T, api *fakeAPI) *Board {
	t.Helper()
	b := NewBoard(api)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return b
}

func TestLoadInitializesUnprocessed(t *testing.T) {
	api := &fakeAPI{exams: []string{"Midterm1", "Final"}}
	b := NewBoard(api)
	b.state.Exams = []model.Exam{{Name: "Midterm1", Processed: true, Report: model.Report{"x.png": {}}}}

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := b.State()
	if !s.Loaded || len(s.Exams) != 2 {
		t.Fatalf("state = %+v", s)
	}
	for _, e := range s.Exams {
		if e.Processed || e.Report != nil {
			t.Errorf("exam %q should start unprocessed with no report", e.Name)
		}
	}
}

func TestLoadFailure(t *testing.T) {
	api := &fakeAPI{listErr: &omr.TransportError{Err: errors.New("refused")}}
	b := NewBoard(api)
	if err := b.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	s := b.State()
	if s.Notice == nil || s.Notice.MsgID != MsgLoadExams {
		t.Errorf("notice = %+v", s.Notice)
	}
	if len(s.Exams) != 0 {
		t.Errorf("exams = %v", s.Exams)
	}
}

func TestUploadChainsIntoReport(t *testing.T) {
	api := &fakeAPI{
		exams: []string{"Midterm1"},
		reports: []model.Report{{
			"img1.png": {
				Score:          8,
				Choices:        map[string]string{"Q1": "A"},
				CorrectAnswers: map[string]string{"Q1": "A"},
			},
		}},
	}
	b := loadedBoard(t, api)

	if err := b.UploadResponses(context.Background(), "Midterm1", []model.UploadFile{png, png, png}); err != nil {
		t.Fatalf("UploadResponses: %v", err)
	}
	e, _ := b.State().Exam("Midterm1")
	if !e.Processed {
		t.Error("exam should be processed")
	}
	if len(e.Report) != 1 {
		t.Errorf("expected exactly one report entry, got %d", len(e.Report))
	}
	if e.Report["img1.png"].Score != 8 {
		t.Errorf("score = %v", e.Report["img1.png"].Score)
	}
	for _, call := range []string{"responses:Midterm1", "generate:Midterm1", "fetch:Midterm1"} {
		if api.count(call) != 1 {
			t.Errorf("%s called %d times", call, api.count(call))
		}
	}
	if b.State().Selected != "Midterm1" {
		t.Errorf("selected = %q", b.State().Selected)
	}
}

func TestUploadFailureDoesNotChain(t *testing.T) {
	api := &fakeAPI{exams: []string{"Midterm1"}, uploadErr: &omr.BusinessError{Message: "bad image"}}
	b := loadedBoard(t, api)

	_ = b.UploadResponses(context.Background(), "Midterm1", []model.UploadFile{png})
	if api.count("generate:Midterm1") != 0 {
		t.Error("generate must not be called after a failed upload")
	}
	s := b.State()
	if s.Notice == nil || s.Notice.Text != "bad image" || s.Notice.Exam != "Midterm1" {
		t.Errorf("notice = %+v", s.Notice)
	}
}

func TestUploadRequiresFiles(t *testing.T) {
	api := &fakeAPI{exams: []string{"Midterm1"}}
	b := loadedBoard(t, api)

	err := b.UploadResponses(context.Background(), "Midterm1", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v", err)
	}
	if api.count("responses:Midterm1") != 0 {
		t.Error("no request expected")
	}
}

func TestGenerateFailureSkipsFetch(t *testing.T) {
	api := &fakeAPI{
		exams:  []string{"Midterm1"},
		genErr: &omr.BusinessError{Status: 500, Message: "no answer key"},
	}
	b := loadedBoard(t, api)

	_ = b.GenerateReport(context.Background(), "Midterm1")
	if api.count("fetch:Midterm1") != 0 {
		t.Error("fetch must not be sent when generation fails")
	}
	s := b.State()
	if s.Notice == nil || s.Notice.Text != "no answer key" {
		t.Errorf("notice = %+v", s.Notice)
	}
	if e, _ := s.Exam("Midterm1"); e.Processed {
		t.Error("exam must stay unprocessed")
	}
}

func TestGenerateFallbackMessages(t *testing.T) {
	transport := &omr.TransportError{Err: errors.New("eof")}

	t.Run("generate", func(t *testing.T) {
		b := loadedBoard(t, &fakeAPI{exams: []string{"E"}, genErr: transport})
		_ = b.GenerateReport(context.Background(), "E")
		if n := b.State().Notice; n == nil || n.MsgID != MsgGenerateReport {
			t.Errorf("notice = %+v", n)
		}
	})

	t.Run("fetch", func(t *testing.T) {
		b := loadedBoard(t, &fakeAPI{exams: []string{"E"}, fetchErr: transport})
		_ = b.GenerateReport(context.Background(), "E")
		if n := b.State().Notice; n == nil || n.MsgID != MsgFetchReport {
			t.Errorf("notice = %+v", n)
		}
	})
}

func TestReportsAccumulate(t *testing.T) {
	api := &fakeAPI{
		exams: []string{"Midterm1"},
		reports: []model.Report{
			{"a.png": {Score: 1}, "b.png": {Score: 2}},
			{"b.png": {Score: 5}, "c.png": {Score: 3}},
		},
	}
	b := loadedBoard(t, api)
	ctx := context.Background()

	if err := b.GenerateReport(ctx, "Midterm1"); err != nil {
		t.Fatalf("first report: %v", err)
	}
	if err := b.GenerateReport(ctx, "Midterm1"); err != nil {
		t.Fatalf("second report: %v", err)
	}

	e, _ := b.State().Exam("Midterm1")
	if len(e.Report) != 3 {
		t.Fatalf("expected union of 3 entries, got %v", e.Report)
	}
	if e.Report["b.png"].Score != 5 {
		t.Errorf("later fetch should win, got %v", e.Report["b.png"].Score)
	}
	if !e.Processed {
		t.Error("processed should stay true")
	}
}

func TestProcessedStaysTrueAfterFailure(t *testing.T) {
	api := &fakeAPI{exams: []string{"E"}, reports: []model.Report{{"a.png": {}}}}
	b := loadedBoard(t, api)
	ctx := context.Background()

	if err := b.GenerateReport(ctx, "E"); err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	api.genErr = &omr.BusinessError{Message: "later failure"}
	_ = b.GenerateReport(ctx, "E")

	e, _ := b.State().Exam("E")
	if !e.Processed || len(e.Report) != 1 {
		t.Errorf("exam = %+v", e)
	}
}

func TestDownload(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		api := &fakeAPI{exams: []string{"Final"}, csv: []byte("Name,Score\n")}
		b := loadedBoard(t, api)
		d, err := b.Download(context.Background(), "Final")
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if d.Filename != "Final_report.csv" {
			t.Errorf("filename = %q", d.Filename)
		}
		if string(d.Data) != "Name,Score\n" {
			t.Errorf("data = %q", d.Data)
		}
	})

	t.Run("failure", func(t *testing.T) {
		api := &fakeAPI{exams: []string{"Final"}, dlErr: &omr.TransportError{Err: errors.New("reset")}}
		b := loadedBoard(t, api)
		if _, err := b.Download(context.Background(), "Final"); err == nil {
			t.Fatal("expected error")
		}
		if n := b.State().Notice; n == nil || n.MsgID != MsgDownloadReport {
			t.Errorf("notice = %+v", n)
		}
	})
}

func TestUnknownExam(t *testing.T) {
	api := &fakeAPI{exams: []string{"Midterm1"}}
	b := loadedBoard(t, api)

	err := b.GenerateReport(context.Background(), "Ghost")
	if !errors.Is(err, ErrUnknownExam) {
		t.Errorf("err = %v", err)
	}
	if api.count("generate:Ghost") != 0 {
		t.Error("no request expected for an unlisted exam")
	}
}

func TestBoardBusyPerExamAndAction(t *testing.T) {
	api := &fakeAPI{exams: []string{"A", "B"}}
	b := loadedBoard(t, api)
	api.started = make(chan struct{}, 4)
	api.block = make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- b.GenerateReport(context.Background(), "A") }()
	<-api.started

	if !b.Busy("A", ActionReport) {
		t.Error("A/report should be busy")
	}
	if err := b.GenerateReport(context.Background(), "A"); !errors.Is(err, ErrBusy) {
		t.Errorf("second report on A: %v, want ErrBusy", err)
	}

	// A different exam is independent.
	errB := make(chan error, 1)
	go func() { errB <- b.GenerateReport(context.Background(), "B") }()
	select {
	case <-api.started:
	case <-time.After(time.Second):
		t.Fatal("report on B should not wait for A")
	}

	close(api.block)
	if err := <-errc; err != nil {
		t.Errorf("A: %v", err)
	}
	// drain the fetch calls' started signals
	for i := 0; i < 2; i++ {
		<-api.started
	}
	if err := <-errB; err != nil {
		t.Errorf("B: %v", err)
	}
	if b.Busy("A", ActionReport) || b.Busy("B", ActionReport) {
		t.Error("actions should be idle after completion")
	}
}

func TestUploadChainHoldsReportAction(t *testing.T) {
	api := &fakeAPI{exams: []string{"A"}}
	b := loadedBoard(t, api)
	api.started = make(chan struct{}, 4)
	api.block = make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- b.UploadResponses(context.Background(), "A", []model.UploadFile{png}) }()
	<-api.started

	if !b.Busy("A", ActionReport) {
		t.Error("A/report should be busy while responses upload")
	}
	if err := b.GenerateReport(context.Background(), "A"); !errors.Is(err, ErrBusy) {
		t.Errorf("report during upload chain: %v, want ErrBusy", err)
	}

	close(api.block)
	if err := <-errc; err != nil {
		t.Fatalf("UploadResponses: %v", err)
	}
	if n := api.count("generate:A"); n != 1 {
		t.Errorf("generate calls = %d, want 1", n)
	}
	if b.Busy("A", ActionUpload) || b.Busy("A", ActionReport) {
		t.Error("actions should be idle after completion")
	}
}

func TestDetail(t *testing.T) {
	api := &fakeAPI{detail: model.ExamDetail{Name: "E", Images: []string{"a.png"}}}
	b := NewBoard(api)
	d, err := b.Detail(context.Background(), "E")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if len(d.Images) != 1 {
		t.Errorf("detail = %+v", d)
	}
}

func TestNoticeFor(t *testing.T) {
	if n := NoticeFor(ErrBusy, MsgCreateExam); n.MsgID != MsgBusy {
		t.Errorf("busy notice = %+v", n)
	}
	if n := NoticeFor(&omr.BusinessError{Message: "x"}, MsgCreateExam); n.Text != "x" {
		t.Errorf("business notice = %+v", n)
	}
	if n := NoticeFor(errors.New("other"), MsgCreateExam); n.MsgID != MsgCreateExam {
		t.Errorf("fallback notice = %+v", n)
	}
}
