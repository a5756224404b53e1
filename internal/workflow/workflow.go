// Package workflow holds the page state machines: the exam-creation wizard and
// the exam board. Both talk to the grading backend only through API.
package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/omr"
)

// API is the part of the grading backend the workflows use.
type API interface {
	ListExams(ctx context.Context) ([]string, error)
	CreateExam(ctx context.Context, name string) error
	UploadSolution(ctx context.Context, exam string, file model.UploadFile) (model.AnswerKey, error)
	UploadResponses(ctx context.Context, exam string, files []model.UploadFile) error
	GenerateReport(ctx context.Context, exam string) error
	FetchReport(ctx context.Context, exam string) (model.Report, error)
	DownloadReport(ctx context.Context, exam string) ([]byte, error)
	GetExam(ctx context.Context, exam string) (model.ExamDetail, error)
}

// Message IDs for notices. They match keys in the locale files.
const (
	MsgExamNameRequired  = "ErrExamNameRequired"
	MsgSolutionRequired  = "ErrSolutionRequired"
	MsgResponsesRequired = "ErrResponsesRequired"
	MsgSingleSolution    = "ErrSingleSolution"
	MsgCreateExam        = "ErrCreateExam"
	MsgUploadSolution    = "ErrUploadSolution"
	MsgUploadResponses   = "ErrUploadResponses"
	MsgLoadExams         = "ErrLoadExams"
	MsgGenerateReport    = "ErrGenerateReport"
	MsgFetchReport       = "ErrFetchReport"
	MsgDownloadReport    = "ErrDownloadReport"
	MsgLoadExam          = "ErrLoadExam"
	MsgUnknownExam       = "ErrUnknownExam"
	MsgBusy              = "ErrBusy"
)

var (
	// ErrBusy is returned when a request for the same action is still in flight.
	ErrBusy = errors.New("request already in progress")
	// ErrWrongStep is returned when a wizard action does not belong to the current step.
	ErrWrongStep = errors.New("action not available in current step")
	// ErrUnknownExam is returned for an exam the board does not list.
	ErrUnknownExam = errors.New("unknown exam")
)

// ValidationError blocks a request before it is sent.
type ValidationError struct {
	MsgID string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.MsgID
}

// noticeFor turns an action error into what the page shows: validation message,
// backend text verbatim, or the action's localized fallback.
func noticeFor(err error, fallback string) *model.Notice {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &model.Notice{MsgID: ve.MsgID}
	}
	if errors.Is(err, ErrUnknownExam) {
		return &model.Notice{MsgID: MsgUnknownExam}
	}
	if msg, ok := omr.BusinessMessage(err); ok {
		return &model.Notice{Text: msg}
	}
	slog.Warn("backend call failed", "error", err)
	return &model.Notice{MsgID: fallback}
}

// NoticeFor is noticeFor for callers outside the state machines (CLI, JSON API).
func NoticeFor(err error, fallback string) *model.Notice {
	if errors.Is(err, ErrBusy) {
		return &model.Notice{MsgID: MsgBusy}
	}
	return noticeFor(err, fallback)
}
