package logic

// Node is a question in the logic map.
type Node struct {
	ID            string       `json:"id" yaml:"id"`
	Text          string       `json:"text" yaml:"text"`
	Order         int          `json:"order" yaml:"order"`
	Type          QuestionType `json:"type" yaml:"type"`
	HasLogic      bool         `json:"hasLogic" yaml:"has_logic"`           // targeted by at least one rule
	IsConditional bool         `json:"isConditional" yaml:"is_conditional"` // source of at least one rule
}

// Edge is a rule drawn between two questions. TargetID is empty for
// EndSurvey rules.
type Edge struct {
	ID              string   `json:"id" yaml:"id"`
	SourceID        string   `json:"sourceId" yaml:"source_id"`
	TargetID        string   `json:"targetId,omitempty" yaml:"target_id,omitempty"`
	Operator        Operator `json:"operator" yaml:"operator"`
	ComparisonValue string   `json:"conditionValue,omitempty" yaml:"condition_value,omitempty"`
	Action          Action   `json:"action" yaml:"action"`
	Priority        int      `json:"priority" yaml:"priority"`
	Label           string   `json:"label" yaml:"label"`
}

// Map is the graph the admin console draws for a survey's logic.
type Map struct {
	SurveyID string `json:"surveyId" yaml:"survey_id"`
	Nodes    []Node `json:"nodes" yaml:"nodes"`
	Edges    []Edge `json:"edges" yaml:"edges"`
}

// BuildMap lays out the survey's questions in natural order and one edge per
// rule, in priority order.
func BuildMap(survey Survey, rules []Rule) Map {
	targeted := make(map[string]bool)
	sources := make(map[string]bool)
	for _, r := range rules {
		if id := r.target(); id != "" {
			targeted[id] = true
		}
		sources[r.SourceQuestionID] = true
	}

	m := Map{SurveyID: survey.ID}
	for _, q := range survey.ordered() {
		m.Nodes = append(m.Nodes, Node{
			ID:            q.ID,
			Text:          q.Text,
			Order:         q.Order,
			Type:          q.Type,
			HasLogic:      targeted[q.ID],
			IsConditional: sources[q.ID],
		})
	}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sortRules(sorted)
	for _, r := range sorted {
		e := Edge{
			ID:       r.ID,
			SourceID: r.SourceQuestionID,
			TargetID: r.target(),
			Operator: r.Operator,
			Action:   r.Action,
			Priority: r.Priority,
			Label:    Label(r),
		}
		if r.Operator.NeedsValue() {
			e.ComparisonValue = r.ComparisonValue
		}
		m.Edges = append(m.Edges, e)
	}

	return m
}

// target is the question an edge for r points at.
func (r Rule) target() string {
	switch {
	case r.Action == JumpTo:
		return r.JumpToQuestionID
	case r.Action.Targets():
		return r.TargetQuestionID
	}
	return ""
}

// Label renders a short human description of a rule, e.g. "= 'No' → Skip".
func Label(r Rule) string {
	var op string
	switch r.Operator {
	case Equals:
		op = "="
	case NotEquals:
		op = "≠"
	case Contains:
		op = "contains"
	case NotContains:
		op = "not contains"
	case GreaterThan:
		op = ">"
	case LessThan:
		op = "<"
	case GreaterThanOrEquals:
		op = "≥"
	case LessThanOrEquals:
		op = "≤"
	case IsEmpty:
		op = "is empty"
	case IsNotEmpty:
		op = "is not empty"
	case IsAnswered:
		op = "is answered"
	case IsNotAnswered:
		op = "is not answered"
	default:
		op = r.Operator.String()
	}

	var action string
	switch r.Action {
	case Show:
		action = "→ Show"
	case Hide:
		action = "→ Hide"
	case Skip:
		action = "→ Skip"
	case JumpTo:
		action = "→ Jump to"
	case EndSurvey:
		action = "→ End Survey"
	default:
		action = "→ " + r.Action.String()
	}

	if r.Operator.NeedsValue() {
		return op + " '" + r.ComparisonValue + "' " + action
	}
	return op + " " + action
}
