package models

import (
	"database/sql"
	"fmt"

	"github.com/paulexconde/justasking/internal/logic"
)

type Survey struct {
	ID     string `db:"id" json:"id"`
	Title  string `db:"title" json:"title"`
	Status string `db:"status" json:"status"` // draft, published, closed
}

type Question struct {
	ID         string `db:"id" json:"id"`
	SurveyID   string `db:"survey_id" json:"survey_id"`
	Position   int    `db:"position" json:"order"`
	Text       string `db:"text" json:"text"`
	Type       string `db:"question_type" json:"type"`
	IsRequired bool   `db:"is_required" json:"is_required"`
}

// QuestionLogic is a row of the question_logic table. Operator and action are
// stored by name, e.g. "equals" and "jump_to".
type QuestionLogic struct {
	ID               string         `db:"id" json:"id"`
	SurveyID         string         `db:"survey_id" json:"survey_id"`
	SourceQuestionID string         `db:"source_question_id" json:"source_question_id"`
	Operator         string         `db:"operator" json:"operator"`
	ConditionValue   string         `db:"condition_value" json:"condition_value"`
	Action           string         `db:"action" json:"action"`
	TargetQuestionID sql.NullString `db:"target_question_id" json:"target_question_id"`
	JumpToQuestionID sql.NullString `db:"jump_to_question_id" json:"jump_to_question_id"`
	Priority         int            `db:"priority" json:"priority"`
}

type Response struct {
	ID                string         `db:"id" json:"id"`
	SurveyID          string         `db:"survey_id" json:"survey_id"`
	CurrentQuestionID sql.NullString `db:"current_question_id" json:"current_question_id"`
	Completed         bool           `db:"completed" json:"completed"`
	EndReason         sql.NullString `db:"end_reason" json:"end_reason"`
}

// Answer is a row of the answers table. A NULL value is a question the
// respondent cleared.
type Answer struct {
	ResponseID string         `db:"response_id" json:"response_id"`
	QuestionID string         `db:"question_id" json:"question_id"`
	Value      sql.NullString `db:"value" json:"value"`
}

// Visit counts how many times a response has been routed to a question.
type Visit struct {
	ResponseID string `db:"response_id" json:"response_id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Count      int    `db:"visit_count" json:"count"`
}

func (q Question) ToLogic() logic.Question {
	return logic.Question{
		ID:         q.ID,
		Order:      q.Position,
		Type:       logic.QuestionType(q.Type),
		Text:       q.Text,
		IsRequired: q.IsRequired,
	}
}

func (l QuestionLogic) ToLogic() (logic.Rule, error) {
	op, err := logic.ParseOperator(l.Operator)
	if err != nil {
		return logic.Rule{}, fmt.Errorf("rule %s: %w", l.ID, err)
	}
	action, err := logic.ParseAction(l.Action)
	if err != nil {
		return logic.Rule{}, fmt.Errorf("rule %s: %w", l.ID, err)
	}

	return logic.Rule{
		ID:               l.ID,
		SourceQuestionID: l.SourceQuestionID,
		Operator:         op,
		ComparisonValue:  l.ConditionValue,
		Action:           action,
		TargetQuestionID: l.TargetQuestionID.String,
		JumpToQuestionID: l.JumpToQuestionID.String,
		Priority:         l.Priority,
	}, nil
}

// AnswersToLogic folds answer rows into the engine's answer map.
func AnswersToLogic(rows []Answer) logic.Answers {
	answers := make(logic.Answers, len(rows))
	for _, row := range rows {
		if row.Value.Valid {
			v := row.Value.String
			answers[row.QuestionID] = &v
			continue
		}
		answers[row.QuestionID] = nil
	}
	return answers
}

// NullString converts an optional value into a nullable column.
func NullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func QuestionFromLogic(surveyID string, q logic.Question) Question {
	return Question{
		ID:         q.ID,
		SurveyID:   surveyID,
		Position:   q.Order,
		Text:       q.Text,
		Type:       string(q.Type),
		IsRequired: q.IsRequired,
	}
}

// QuestionLogicFromLogic is the inverse of QuestionLogic.ToLogic. Target
// columns are NULL when the action does not use them.
func QuestionLogicFromLogic(surveyID string, r logic.Rule) QuestionLogic {
	row := QuestionLogic{
		ID:               r.ID,
		SurveyID:         surveyID,
		SourceQuestionID: r.SourceQuestionID,
		Operator:         r.Operator.String(),
		ConditionValue:   r.ComparisonValue,
		Action:           r.Action.String(),
		Priority:         r.Priority,
	}
	if r.TargetQuestionID != "" {
		row.TargetQuestionID = sql.NullString{String: r.TargetQuestionID, Valid: true}
	}
	if r.JumpToQuestionID != "" {
		row.JumpToQuestionID = sql.NullString{String: r.JumpToQuestionID, Valid: true}
	}
	return row
}
