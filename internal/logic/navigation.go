package logic

import (
	"fmt"

	"github.com/paulexconde/justasking/pkg/fault"
)

// Reason explains how a navigation decision was reached.
type Reason string

const (
	// A JumpTo rule on the current question fired.
	ReasonJump Reason = "jump"
	// An EndSurvey rule on the current question fired.
	ReasonEndRule Reason = "end_rule"
	// The next visible question in natural order was chosen.
	ReasonNatural Reason = "natural"
	// No visible question remains after the current one.
	ReasonExhausted Reason = "exhausted"
)

// Decision is the outcome of one navigation step.
type Decision struct {
	Visible []string
	Next    string // empty when Ended
	Ended   bool
	Reason  Reason
	RuleID  string // rule that fired for ReasonJump and ReasonEndRule

	// VoidJumps lists JumpTo rules that fired but pointed at a hidden question.
	VoidJumps []string
}

// Decide resolves where to route after currentID has been answered.
//
// The rules anchored on currentID are tried in priority order and the first
// JumpTo or EndSurvey whose condition holds wins. A jump to a hidden
// question is void and navigation falls back to natural order. Show, Hide
// and Skip rules have no navigation effect of their own.
//
// currentID must belong to the survey; anything else is a caller bug and
// yields an internal fault wrapping fault.ErrUnknownQuestion.
func Decide(survey Survey, rules []Rule, currentID string, answers Answers) (Decision, error) {
	current, ok := survey.Question(currentID)
	if !ok {
		return Decision{}, fault.NewInternalError(
			fmt.Sprintf("navigate from %q in survey %q", currentID, survey.ID),
			fault.ErrUnknownQuestion,
		)
	}

	visibleIDs := VisibleQuestions(survey, rules, answers)
	visible := make(map[string]bool, len(visibleIDs))
	for _, id := range visibleIDs {
		visible[id] = true
	}

	d := Decision{Visible: visibleIDs}

	anchored := make([]Rule, 0)
	for _, r := range rules {
		if r.SourceQuestionID == current.ID {
			anchored = append(anchored, r)
		}
	}
	sortRules(anchored)

scan:
	for _, r := range anchored {
		if r.Action != EndSurvey && r.Action != JumpTo {
			continue
		}
		if !r.holds(answers) {
			continue
		}
		switch r.Action {
		case EndSurvey:
			d.Ended = true
			d.Reason = ReasonEndRule
			d.RuleID = r.ID
			return d, nil
		case JumpTo:
			if visible[r.JumpToQuestionID] {
				d.Next = r.JumpToQuestionID
				d.Reason = ReasonJump
				d.RuleID = r.ID
				return d, nil
			}
			d.VoidJumps = append(d.VoidJumps, r.ID)
			break scan
		}
	}

	for _, q := range survey.ordered() {
		if q.Order > current.Order && visible[q.ID] {
			d.Next = q.ID
			d.Reason = ReasonNatural
			return d, nil
		}
	}

	d.Ended = true
	d.Reason = ReasonExhausted
	return d, nil
}

// NextQuestion returns the ID of the question to present after currentID,
// or ok == false when the survey should proceed to completion.
func NextQuestion(survey Survey, rules []Rule, currentID string, answers Answers) (next string, ok bool, err error) {
	d, err := Decide(survey, rules, currentID, answers)
	if err != nil {
		return "", false, err
	}
	return d.Next, !d.Ended, nil
}
