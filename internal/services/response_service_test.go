package services

import (
	"context"
	"errors"
	"testing"

	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSurveys struct {
	def SurveyDefinition
	err error
}

func (f *fakeSurveys) GetSurvey(_ context.Context, surveyID string) (logic.Survey, error) {
	if f.err != nil {
		return logic.Survey{}, f.err
	}
	if surveyID != f.def.Survey.ID {
		return logic.Survey{}, fault.ErrNotFound
	}
	return f.def.Survey, nil
}

func (f *fakeSurveys) ListRules(_ context.Context, _ string) ([]logic.Rule, error) {
	return f.def.Rules, nil
}

type savedProgress struct {
	questionID string
	currentID  string
	completed  bool
}

type fakeResponses struct {
	sessions map[string]*SurveySession
	saved    []savedProgress
	saveErr  error
}

func (f *fakeResponses) GetSession(_ context.Context, responseID string) (*SurveySession, error) {
	s, ok := f.sessions[responseID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	return s, nil
}

func (f *fakeResponses) SaveProgress(_ context.Context, session *SurveySession, questionID string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, savedProgress{questionID, session.CurrentID, session.Completed})
	return nil
}

func newResponseService(t *testing.T, def SurveyDefinition) (SurveyResponseService, *fakeResponses, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	responses := &fakeResponses{sessions: map[string]*SurveySession{
		"resp1": {ID: "resp1", SurveyID: "s1", CurrentID: "q1"},
	}}
	svc := NewSurveyResponseService(&fakeSurveys{def: def}, responses, NewSurveyService(logger, 0), logger)
	return svc, responses, logs
}

func TestSubmitAnswer(t *testing.T) {
	def := carSurvey(logic.Rule{
		ID: "R1", SourceQuestionID: "q1", Operator: logic.Equals, ComparisonValue: "No",
		Action: logic.Skip, TargetQuestionID: "q2",
	})
	svc, responses, logs := newResponseService(t, def)

	result, err := svc.SubmitAnswer(context.Background(), "resp1", "q1", logic.Str("No"))
	require.NoError(t, err)
	require.NotNil(t, result.Next)
	assert.Equal(t, "q3", result.Next.ID)
	assert.Equal(t, []string{"q1", "q3"}, result.Visible)
	assert.False(t, result.Completed)

	require.Len(t, responses.saved, 1)
	assert.Equal(t, savedProgress{"q1", "q3", false}, responses.saved[0])
	assert.Equal(t, 1, logs.FilterMessage("answer submitted").Len())
}

func TestSubmitAnswer_EndsSurvey(t *testing.T) {
	def := carSurvey(logic.Rule{
		ID: "R2", SourceQuestionID: "q1", Operator: logic.Equals, ComparisonValue: "No",
		Action: logic.EndSurvey,
	})
	svc, responses, logs := newResponseService(t, def)

	result, err := svc.SubmitAnswer(context.Background(), "resp1", "q1", logic.Str("no"))
	require.NoError(t, err)
	assert.Nil(t, result.Next)
	assert.True(t, result.Completed)
	assert.Equal(t, logic.ReasonEndRule, result.EndReason)
	assert.Equal(t, savedProgress{"q1", "", true}, responses.saved[0])

	ended := logs.FilterMessage("survey ended by rule").All()
	require.Len(t, ended, 1)
	assert.Equal(t, "R2", ended[0].ContextMap()["rule_id"])
}

func TestSubmitAnswer_UnknownResponse(t *testing.T) {
	svc, responses, _ := newResponseService(t, carSurvey())

	_, err := svc.SubmitAnswer(context.Background(), "nope", "q1", logic.Str("x"))
	assert.ErrorIs(t, err, fault.ErrNotFound)
	assert.Empty(t, responses.saved)
}

func TestSubmitAnswer_RejectedAnswerIsNotSaved(t *testing.T) {
	svc, responses, logs := newResponseService(t, carSurvey())

	_, err := svc.SubmitAnswer(context.Background(), "resp1", "q42", logic.Str("x"))
	assert.ErrorIs(t, err, fault.ErrUnknownQuestion)
	assert.Empty(t, responses.saved)
	assert.Equal(t, 1, logs.FilterMessage("answer rejected").Len())
}

func TestSubmitAnswer_SaveFailure(t *testing.T) {
	svc, responses, _ := newResponseService(t, carSurvey())
	responses.saveErr = errors.New("db down")

	_, err := svc.SubmitAnswer(context.Background(), "resp1", "q1", logic.Str("Yes"))
	assert.EqualError(t, err, "db down")
}

func TestReconcile(t *testing.T) {
	svc, _, logs := newResponseService(t, carSurvey())
	q3 := logic.Question{ID: "q3", Order: 3}
	server := SubmitResult{ResponseID: "resp1", Next: &q3, Visible: []string{"q1", "q3"}}

	got := svc.Reconcile(Preview{NextQuestionID: "q3"}, server)
	assert.Equal(t, server, got)
	assert.Zero(t, logs.FilterMessage("logic drift").Len())

	got = svc.Reconcile(Preview{NextQuestionID: "q2"}, server)
	assert.Equal(t, server, got)

	drift := logs.FilterMessage("logic drift").All()
	require.Len(t, drift, 1)
	assert.Equal(t, zapcore.WarnLevel, drift[0].Level)
	assert.Equal(t, "q2", drift[0].ContextMap()["client_next_question_id"])
	assert.Equal(t, "q3", drift[0].ContextMap()["server_next_question_id"])
}

func TestReconcile_CompletionMismatch(t *testing.T) {
	svc, _, logs := newResponseService(t, carSurvey())

	svc.Reconcile(Preview{Completed: true}, SubmitResult{ResponseID: "resp1", Completed: true})
	assert.Zero(t, logs.FilterMessage("logic drift").Len())

	svc.Reconcile(Preview{Completed: true}, SubmitResult{ResponseID: "resp1", Next: &logic.Question{ID: "q2"}})
	assert.Equal(t, 1, logs.FilterMessage("logic drift").Len())
}
