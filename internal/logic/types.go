// Package logic decides question visibility, navigation and early
// termination for a survey from its branching rules and the answers a
// respondent has given so far.
//
// Every function in this package is a pure computation over the snapshot
// it is given. Nothing is cached between calls, so one set of rules can
// serve any number of respondent sessions at the same time.
package logic

import (
	"fmt"
	"sort"
	"strings"
)

// The type of question being asked.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	Text           QuestionType = "text"
	LongText       QuestionType = "long_text"
	Rating         QuestionType = "rating"
	Scale          QuestionType = "scale"
	Matrix         QuestionType = "matrix"
	Date           QuestionType = "date"
	FileUpload     QuestionType = "file_upload"
	YesNo          QuestionType = "yes_no"
	Dropdown       QuestionType = "dropdown"
	NPS            QuestionType = "nps"
	Number         QuestionType = "number"
	Ranking        QuestionType = "ranking"
	Email          QuestionType = "email"
	Phone          QuestionType = "phone"
	URL            QuestionType = "url"
)

var questionTypes = map[QuestionType]struct{}{
	SingleChoice: {}, MultipleChoice: {}, Text: {}, LongText: {}, Rating: {},
	Scale: {}, Matrix: {}, Date: {}, FileUpload: {}, YesNo: {}, Dropdown: {},
	NPS: {}, Number: {}, Ranking: {}, Email: {}, Phone: {}, URL: {},
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	_, ok := questionTypes[t]
	return ok
}

// Operator is the comparison a rule applies to its source answer.
type Operator int

const (
	Equals Operator = iota
	NotEquals
	Contains
	NotContains
	GreaterThan
	LessThan
	GreaterThanOrEquals
	LessThanOrEquals
	IsAnswered
	IsNotAnswered
	IsEmpty
	IsNotEmpty
)

var operatorNames = [...]string{
	Equals:              "equals",
	NotEquals:           "not_equals",
	Contains:            "contains",
	NotContains:         "not_contains",
	GreaterThan:         "greater_than",
	LessThan:            "less_than",
	GreaterThanOrEquals: "greater_than_or_equals",
	LessThanOrEquals:    "less_than_or_equals",
	IsAnswered:          "is_answered",
	IsNotAnswered:       "is_not_answered",
	IsEmpty:             "is_empty",
	IsNotEmpty:          "is_not_empty",
}

func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("operator(%d)", int(o))
	}
	return operatorNames[o]
}

// NeedsValue reports whether the operator reads the rule's comparison value.
func (o Operator) NeedsValue() bool {
	switch o {
	case IsAnswered, IsNotAnswered, IsEmpty, IsNotEmpty:
		return false
	}
	return true
}

// ParseOperator is the inverse of Operator.String. Matching is case
// insensitive and accepts the CamelCase names used by the admin console.
func ParseOperator(s string) (Operator, error) {
	key := normalizeName(s)
	for i, name := range operatorNames {
		if strings.ReplaceAll(name, "_", "") == key {
			return Operator(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// MarshalText encodes the operator by name.
func (o Operator) MarshalText() ([]byte, error) {
	if o < 0 || int(o) >= len(operatorNames) {
		return nil, fmt.Errorf("unknown operator %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText accepts any name ParseOperator does.
func (o *Operator) UnmarshalText(b []byte) error {
	v, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Action is what a rule does when its condition holds.
type Action int

const (
	Show Action = iota
	Hide
	Skip
	JumpTo
	EndSurvey
)

var actionNames = [...]string{
	Show:      "show",
	Hide:      "hide",
	Skip:      "skip",
	JumpTo:    "jump_to",
	EndSurvey: "end_survey",
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// Targets reports whether the action applies to a target question
// (Show, Hide and Skip).
func (a Action) Targets() bool {
	return a == Show || a == Hide || a == Skip
}

// ParseAction is the inverse of Action.String, matched case insensitively.
func ParseAction(s string) (Action, error) {
	key := normalizeName(s)
	for i, name := range actionNames {
		if strings.ReplaceAll(name, "_", "") == key {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(actionNames) {
		return nil, fmt.Errorf("unknown action %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText accepts any name ParseAction does.
func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, " ", "")
}

// The Question object.
type Question struct {
	ID         string
	Order      int // 1-based, unique within a survey
	Type       QuestionType
	Text       string
	IsRequired bool
}

// Rule is a single branching directive (a QuestionLogic row).
type Rule struct {
	ID               string
	SourceQuestionID string
	Operator         Operator
	ComparisonValue  string
	Action           Action
	TargetQuestionID string // Show, Hide, Skip
	JumpToQuestionID string // JumpTo
	Priority         int    // lower fires first
}

// Survey is the published, read-only question list.
type Survey struct {
	ID        string
	Title     string
	Questions []Question
}

// Answers maps a question ID to the collected value. A missing key or a nil
// value means the question has not been answered; a pointer to "" is an
// answered empty string.
type Answers map[string]*string

// Value returns the answer for id, or nil when it is unanswered.
func (a Answers) Value(id string) *string {
	if a == nil {
		return nil
	}
	return a[id]
}

// Str returns a pointer to s, for building Answers literals.
func Str(s string) *string {
	return &s
}

// ordered returns the survey's questions sorted by Order. Ties keep the
// input order.
func (s Survey) ordered() []Question {
	qs := make([]Question, len(s.Questions))
	copy(qs, s.Questions)
	sort.SliceStable(qs, func(i, j int) bool {
		return qs[i].Order < qs[j].Order
	})
	return qs
}

// Question looks up a question by ID.
func (s Survey) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// sortRules orders rules by priority, then by ID.
func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}

// holds evaluates the rule's condition against the answers.
func (r Rule) holds(answers Answers) bool {
	return Evaluate(r.Operator, r.ComparisonValue, answers.Value(r.SourceQuestionID))
}
