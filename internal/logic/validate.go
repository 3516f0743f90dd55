package logic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulexconde/justasking/pkg/fault"
)

// Issue codes reported by Validate.
const (
	CodeInvalidRuleTarget      = "InvalidRuleTarget"
	CodeSelfReferentialRule    = "SelfReferentialRule"
	CodeTargetBeforeSource     = "TargetBeforeSource"
	CodeMissingComparisonValue = "MissingComparisonValue"
	CodeNegativePriority       = "NegativePriority"
	CodeDuplicateRuleID        = "DuplicateRuleID"
	CodeDuplicateQuestionOrder = "DuplicateQuestionOrder"
	CodeUnknownOperator        = "UnknownOperator"
	CodeUnknownAction          = "UnknownAction"
	CodeBackwardJump           = "BackwardJump"
	CodeUnboundedLoop          = "UnboundedLoop"
)

// Severity says whether an issue blocks publishing.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// String returns "error" or "warning".
func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// MarshalText encodes the severity as its String form.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Issue is one finding about a rule.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	RuleID   string   `json:"ruleId"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.RuleID == "" {
		return fmt.Sprintf("%s %s: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("%s %s (rule %s): %s", i.Severity, i.Code, i.RuleID, i.Message)
}

// Report holds the findings of Validate. Warnings are flagged for author
// review but do not make the rule set invalid.
type Report struct {
	Errors   []Issue
	Warnings []Issue
}

// Valid reports whether no error-level issue was found.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// Err joins the error-level issues into client faults, or returns nil.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, issue := range r.Errors {
		errs = append(errs, fault.NewCodedClientError(issue.Code, issue.Message, fault.ErrInvalidRuleInput))
	}
	return errors.Join(errs...)
}

func (r *Report) add(sev Severity, code string, rule Rule, format string, args ...any) {
	issue := Issue{
		Code:     code,
		Severity: sev,
		RuleID:   rule.ID,
		Message:  fmt.Sprintf(format, args...),
	}
	if sev == SeverityWarning {
		r.Warnings = append(r.Warnings, issue)
		return
	}
	r.Errors = append(r.Errors, issue)
}

// Validate checks a rule set for structural authoring errors against the
// survey it belongs to. It is meant for the authoring path; evaluation never
// calls it and tolerates any rule set.
func Validate(survey Survey, rules []Rule) Report {
	var report Report

	questions := make(map[string]Question, len(survey.Questions))
	orders := make(map[int]string, len(survey.Questions))
	for _, q := range survey.Questions {
		questions[q.ID] = q
		if prev, dup := orders[q.Order]; dup {
			report.add(SeverityError, CodeDuplicateQuestionOrder, Rule{}, "questions %q and %q share order %d", prev, q.ID, q.Order)
			continue
		}
		orders[q.Order] = q.ID
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.ID != "" {
			if seen[r.ID] {
				report.add(SeverityError, CodeDuplicateRuleID, r, "rule id %q is used more than once", r.ID)
			}
			seen[r.ID] = true
		}

		if r.Operator < Equals || r.Operator > IsNotEmpty {
			report.add(SeverityError, CodeUnknownOperator, r, "unknown operator %d", int(r.Operator))
		} else if r.Operator.NeedsValue() && strings.TrimSpace(r.ComparisonValue) == "" {
			report.add(SeverityError, CodeMissingComparisonValue, r, "operator %s needs a comparison value", r.Operator)
		}

		if r.Priority < 0 {
			report.add(SeverityError, CodeNegativePriority, r, "priority %d is negative", r.Priority)
		}

		source, ok := questions[r.SourceQuestionID]
		if !ok {
			report.add(SeverityError, CodeInvalidRuleTarget, r, "source question %q is not in the survey", r.SourceQuestionID)
		}

		switch {
		case r.Action.Targets():
			validateTarget(&report, r, source, ok, questions)
		case r.Action == JumpTo:
			validateJump(&report, r, source, ok, questions)
		case r.Action == EndSurvey:
		default:
			report.add(SeverityError, CodeUnknownAction, r, "unknown action %d", int(r.Action))
		}
	}

	return report
}

func validateTarget(report *Report, r Rule, source Question, sourceOK bool, questions map[string]Question) {
	if r.TargetQuestionID == "" {
		report.add(SeverityError, CodeInvalidRuleTarget, r, "%s needs a target question", r.Action)
		return
	}
	if r.TargetQuestionID == r.SourceQuestionID {
		report.add(SeverityError, CodeSelfReferentialRule, r, "%s targets its own source question %q", r.Action, r.SourceQuestionID)
		return
	}
	target, ok := questions[r.TargetQuestionID]
	if !ok {
		report.add(SeverityError, CodeInvalidRuleTarget, r, "target question %q is not in the survey", r.TargetQuestionID)
		return
	}
	if sourceOK && target.Order < source.Order {
		report.add(SeverityError, CodeTargetBeforeSource, r,
			"target %q (order %d) comes before source %q (order %d)", target.ID, target.Order, source.ID, source.Order)
	}
}

func validateJump(report *Report, r Rule, source Question, sourceOK bool, questions map[string]Question) {
	if r.JumpToQuestionID == "" {
		report.add(SeverityError, CodeInvalidRuleTarget, r, "jump_to needs a destination question")
		return
	}
	if r.JumpToQuestionID == r.SourceQuestionID {
		report.add(SeverityError, CodeSelfReferentialRule, r, "jump_to targets its own source question %q", r.SourceQuestionID)
		return
	}
	dest, ok := questions[r.JumpToQuestionID]
	if !ok {
		report.add(SeverityError, CodeInvalidRuleTarget, r, "jump destination %q is not in the survey", r.JumpToQuestionID)
		return
	}
	if !sourceOK || dest.Order > source.Order {
		return
	}

	// Answering a required question always makes IsAnswered hold, so the
	// respondent would be sent back on every pass.
	if r.Operator == IsAnswered && source.IsRequired {
		report.add(SeverityError, CodeUnboundedLoop, r,
			"jump from %q back to %q fires on every answer and never terminates", source.ID, dest.ID)
		return
	}
	report.add(SeverityWarning, CodeBackwardJump, r,
		"jump from %q (order %d) back to %q (order %d)", source.ID, source.Order, dest.ID, dest.Order)
}
