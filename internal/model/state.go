package model

// WizardStep is a state of the exam-creation wizard.
type WizardStep string

const (
	StepNamingExam       WizardStep = "naming_exam"
	StepAwaitingSolution WizardStep = "awaiting_solution"
	StepReviewingKey     WizardStep = "reviewing_key"
	StepDone             WizardStep = "done"
)

// WizardState is the view state of one exam-creation wizard.
type WizardState struct {
	Step      WizardStep `json:"step"`
	ExamName  string     `json:"exam_name"`
	AnswerKey AnswerKey  `json:"answer_key,omitempty"`
	Notice    *Notice    `json:"notice,omitempty"`
}

// BoardState is the view state of the exam list page.
type BoardState struct {
	Exams    []Exam  `json:"exams"`
	Loaded   bool    `json:"loaded"`
	Selected string  `json:"selected,omitempty"` // exam whose report merged last
	Notice   *Notice `json:"notice,omitempty"`
}

// Exam returns the exam with the given name.
func (s BoardState) Exam(name string) (Exam, bool) {
	for _, e := range s.Exams {
		if e.Name == name {
			return e, true
		}
	}
	return Exam{}, false
}
