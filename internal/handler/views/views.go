// Package views renders the HTML pages and htmx partials as templ components.
//
// Components live in the .templ files; run "templ generate" after editing them.
package views

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/sheetgrader/internal/i18n"
	"github.com/pavelanni/sheetgrader/internal/model"
)

// WizardPanelID is the element htmx swaps after each wizard step.
const WizardPanelID = "wizard"

// PageNoticeID is the notice slot of the page itself, for failures that belong
// to no panel or card.
const PageNoticeID = "page-notice"

// NoticeSlotID is the id of the notice slot inside the swappable element with
// the given id. A failed htmx request fills the slot and leaves the rest of the
// element, including its selected files, alone.
func NoticeSlotID(id string) string {
	return id + "-notice"
}

// ExamCardID is the element id of the idx-th exam card.
func ExamCardID(idx int) string {
	return "exam-" + strconv.Itoa(idx)
}

// appURL prefixes an app path with the deployment base path.
func appURL(ctx context.Context, p string) templ.SafeURL {
	return templ.URL(model.BasePathFromContext(ctx) + p)
}

func examURL(ctx context.Context, exam, suffix string) templ.SafeURL {
	return appURL(ctx, "/exams/"+url.PathEscape(exam)+suffix)
}

func imageURL(ctx context.Context, exam, file string) templ.SafeURL {
	return examURL(ctx, exam, "/images/"+url.PathEscape(file))
}

func langURL(lang string) templ.SafeURL {
	return templ.URL("?lang=" + url.QueryEscape(lang))
}

// csrfHeaders is the hx-headers value that makes every htmx request carry the CSRF token.
func csrfHeaders(ctx context.Context) string {
	b, _ := json.Marshal(map[string]string{"X-CSRF-Token": model.CSRFTokenFromContext(ctx)})
	return string(b)
}

func pageTitle(ctx context.Context, title string) string {
	app := appI18n.T(ctx, "AppTitle")
	if title == "" {
		return app
	}
	return title + " - " + app
}

// NoticeText resolves a notice to display text: verbatim backend text, or the
// localized message.
func NoticeText(ctx context.Context, n *model.Notice) string {
	if n.Empty() {
		return ""
	}
	if n.Text != "" {
		return n.Text
	}
	return appI18n.T(ctx, n.MsgID)
}

var wizardSteps = []struct {
	msgID string
	steps []model.WizardStep
}{
	{"StepName", []model.WizardStep{model.StepNamingExam}},
	{"StepSolution", []model.WizardStep{model.StepAwaitingSolution}},
	{"StepResponses", []model.WizardStep{model.StepReviewingKey, model.StepDone}},
}

func stepActive(steps []model.WizardStep, current model.WizardStep) bool {
	for _, s := range steps {
		if s == current {
			return true
		}
	}
	return false
}

func uploadID(kind model.UploadKind) string {
	return WizardPanelID + "-" + string(kind)
}

// boardNotice reports whether the board-level notice has no card to sit on.
func boardNotice(s model.BoardState) bool {
	if s.Notice.Empty() {
		return false
	}
	_, listed := s.Exam(s.Notice.Exam)
	return s.Notice.Exam == "" || !listed
}

func cardNotice(s model.BoardState, exam string) *model.Notice {
	if s.Notice != nil && s.Notice.Exam == exam {
		return s.Notice
	}
	return nil
}

func formatScore(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("%.2f", v)
}

func answerTitle(ctx context.Context, right bool) string {
	if right {
		return appI18n.T(ctx, "AnswerRight")
	}
	return appI18n.T(ctx, "AnswerWrong")
}

func questionAnswer(ctx context.Context, question, choice string) string {
	return appI18n.Td(ctx, "QuestionAnswer", map[string]any{"Question": question, "Choice": choice})
}

func detailTitle(ctx context.Context, exam string) string {
	return appI18n.Td(ctx, "DetailHeading", map[string]any{"Exam": exam})
}
