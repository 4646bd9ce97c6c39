package core

import "strings"

// Classifier decides a branch from the current input only.  Keeping these
// at the boundary lets keyboard labels be swapped for structured option IDs
// without touching the step graph.
type Classifier func(input string) bool

// ContainsKeyword matches inputs that mention kw, ignoring case.
func ContainsKeyword(kw string) Classifier {
	kw = strings.ToLower(kw)
	return func(input string) bool {
		return strings.Contains(strings.ToLower(input), kw)
	}
}

// ExactLabel matches inputs equal to a keyboard label.
func ExactLabel(label string) Classifier {
	return func(input string) bool {
		return input == label
	}
}

var (
	// Radiates fires when the pain location mentions radiating pain.
	Radiates = ContainsKeyword("віддає")
	// Sport fires when the activity level mentions sport.
	Sport = ContainsKeyword("спорт")
	Yes   = ExactLabel(AnswerYes)
	Skip  = ExactLabel(AnswerSkip)
)

// ConfirmChoice is the review-step decision.
type ConfirmChoice int

const (
	ChoiceCancel ConfirmChoice = iota
	ChoiceConfirm
	ChoiceEdit
)

// ClassifyConfirm maps review input to a choice. Anything other than the
// exact confirm and edit labels cancels the questionnaire.
func ClassifyConfirm(input string) ConfirmChoice {
	switch input {
	case LabelConfirm:
		return ChoiceConfirm
	case LabelEdit:
		return ChoiceEdit
	default:
		return ChoiceCancel
	}
}
