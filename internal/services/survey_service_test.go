package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/pkg/fault"
)

func carSurvey(rules ...logic.Rule) SurveyDefinition {
	return SurveyDefinition{
		Survey: logic.Survey{
			ID:    "s1",
			Title: "Car Check",
			Questions: []logic.Question{
				{ID: "q1", Order: 1, Type: logic.YesNo, Text: "Do you own a car?", IsRequired: true},
				{ID: "q2", Order: 2, Type: logic.Text, Text: "Which brand?"},
				{ID: "q3", Order: 3, Type: logic.Rating, Text: "How happy are you?"},
			},
		},
		Rules: rules,
	}
}

func newSession() *SurveySession {
	return &SurveySession{
		ID:       "sess1",
		SurveyID: "s1",
		Answers:  make(logic.Answers),
	}
}

func TestStart(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()

	q, err := svc.Start(session, carSurvey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil || q.ID != "q1" {
		t.Errorf("expected first question to be q1, got %v", q)
	}
	if session.Visits["q1"] != 1 {
		t.Errorf("expected q1 to be visited once, got %d", session.Visits["q1"])
	}
}

func TestStart_NothingVisible(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()
	def := carSurvey()
	def.Survey.Questions = nil

	q, err := svc.Start(session, def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != nil {
		t.Errorf("expected nil question, got %+v", q)
	}
	if !session.Completed {
		t.Errorf("expected session to be marked completed")
	}
}

func TestAnswerQuestion_SkipRule(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()
	def := carSurvey(logic.Rule{
		ID: "R1", SourceQuestionID: "q1", Operator: logic.Equals, ComparisonValue: "No",
		Action: logic.Skip, TargetQuestionID: "q2",
	})

	q, err := svc.AnswerQuestion(session, "q1", logic.Str("No"), def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil || q.ID != "q3" {
		t.Errorf("expected next question to be q3, got %v", q)
	}
	if session.CurrentID != "q3" {
		t.Errorf("expected session.CurrentID to be q3, got %s", session.CurrentID)
	}
	if session.Completed {
		t.Errorf("expected session to not be completed")
	}
}

func TestAnswerQuestion_NoRuleMatch(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()
	def := carSurvey(logic.Rule{
		ID: "R1", SourceQuestionID: "q1", Operator: logic.Equals, ComparisonValue: "No",
		Action: logic.Skip, TargetQuestionID: "q2",
	})

	q, err := svc.AnswerQuestion(session, "q1", logic.Str("yes"), def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil || q.ID != "q2" {
		t.Errorf("expected next question to be q2, got %v", q)
	}
}

func TestAnswerQuestion_EndSurveyFromEarlierAnswer(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()
	session.Answers["q1"] = logic.Str("No")
	session.CurrentID = "q2"

	def := carSurvey(logic.Rule{
		ID: "R2", SourceQuestionID: "q1", Operator: logic.Equals, ComparisonValue: "No",
		Action: logic.EndSurvey,
	})

	q, err := svc.AnswerQuestion(session, "q2", logic.Str("Volvo"), def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != nil {
		t.Errorf("expected nil question, got %+v", q)
	}
	if !session.Completed || session.EndReason != logic.ReasonEndRule {
		t.Errorf("expected session completed by rule, got completed=%v reason=%q", session.Completed, session.EndReason)
	}
	if session.CurrentID != "" {
		t.Errorf("expected empty CurrentID, got %s", session.CurrentID)
	}
}

func TestAnswerQuestion_LastQuestionCompletes(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()

	q, err := svc.AnswerQuestion(session, "q3", logic.Str("4"), carSurvey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != nil {
		t.Errorf("expected nil question, got %+v", q)
	}
	if session.EndReason != logic.ReasonExhausted {
		t.Errorf("expected reason %q, got %q", logic.ReasonExhausted, session.EndReason)
	}
}

func TestAnswerQuestion_InvalidQuestion(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()

	q, err := svc.AnswerQuestion(session, "q999", logic.Str("anything"), carSurvey())

	if err == nil || !strings.Contains(err.Error(), "invalid question") {
		t.Errorf("expected 'invalid question' error, got %v", err)
	}
	if !errors.Is(err, fault.ErrUnknownQuestion) || !fault.IsClientError(err) {
		t.Errorf("expected client ErrUnknownQuestion, got %v", err)
	}
	if q != nil {
		t.Errorf("expected nil question, got %+v", q)
	}
}

func TestAnswerQuestion_HiddenQuestion(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()
	def := carSurvey(logic.Rule{
		ID: "R1", SourceQuestionID: "q1", Operator: logic.Equals, ComparisonValue: "Yes",
		Action: logic.Show, TargetQuestionID: "q2",
	})

	_, err := svc.AnswerQuestion(session, "q2", logic.Str("Volvo"), def)
	if !errors.Is(err, fault.ErrQuestionHidden) {
		t.Errorf("expected ErrQuestionHidden, got %v", err)
	}
	if _, ok := session.Answers["q2"]; ok {
		t.Errorf("expected hidden answer to not be recorded")
	}
}

func TestAnswerQuestion_AlreadyCompleted(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := &SurveySession{
		ID:        "sess1",
		SurveyID:  "s1",
		Completed: true,
	}

	q, err := svc.AnswerQuestion(session, "q1", logic.Str("answer"), carSurvey())
	if err == nil || !strings.Contains(err.Error(), "survey already completed") {
		t.Errorf("expected 'survey already completed' error, got %v", err)
	}
	if q != nil {
		t.Errorf("expected nil question, got %+v", q)
	}
}

func TestAnswerQuestion_LoopGuard(t *testing.T) {
	svc := NewSurveyService(nil, 3)
	session := newSession()
	def := carSurvey(logic.Rule{
		ID: "again", SourceQuestionID: "q2", Operator: logic.IsAnswered,
		Action: logic.JumpTo, JumpToQuestionID: "q1",
	})

	if _, err := svc.Start(session, def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		_, err = svc.AnswerQuestion(session, "q1", logic.Str("Yes"), def)
		if err != nil {
			break
		}
		_, err = svc.AnswerQuestion(session, "q2", logic.Str("Volvo"), def)
	}

	if !errors.Is(err, fault.ErrNavigationLoop) {
		t.Fatalf("expected ErrNavigationLoop, got %v", err)
	}
	if session.Visits["q1"] != 3 {
		t.Errorf("expected q1 to be visited 3 times, got %d", session.Visits["q1"])
	}
	if session.CurrentID != "q2" {
		t.Errorf("expected session to stay on q2, got %s", session.CurrentID)
	}
}

func TestAnswerQuestion_EndRuleOnUnansweredQuestion(t *testing.T) {
	svc := NewSurveyService(nil, 0)
	session := newSession()
	def := carSurvey(logic.Rule{
		ID: "R1", SourceQuestionID: "q2", Operator: logic.IsNotAnswered,
		Action: logic.EndSurvey,
	})

	// q2 is still unanswered, so the end rule fires straight away.
	q, err := svc.AnswerQuestion(session, "q1", logic.Str("Yes"), def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != nil || !session.Completed {
		t.Errorf("expected survey to end, got question %v", q)
	}
}
