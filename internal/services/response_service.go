package services

import (
	"context"

	"github.com/paulexconde/justasking/internal/logic"
	"go.uber.org/zap"
)

// Loads published surveys and their rules.
type SurveyRepository interface {
	GetSurvey(ctx context.Context, surveyID string) (logic.Survey, error)
	ListRules(ctx context.Context, surveyID string) ([]logic.Rule, error)
}

// Loads and stores in-flight response sessions.
type ResponseRepository interface {
	GetSession(ctx context.Context, responseID string) (*SurveySession, error)
	// SaveProgress persists the answer to questionID and the session's
	// navigation state in one transaction.
	SaveProgress(ctx context.Context, session *SurveySession, questionID string) error
}

// SubmitResult is the authoritative outcome of an answer submission.
type SubmitResult struct {
	ResponseID string
	Next       *logic.Question
	Visible    []string
	Completed  bool
	EndReason  logic.Reason
}

// Preview is what a client computed locally before submitting.
type Preview struct {
	NextQuestionID string
	Completed      bool
}

// Handles every response for every survey.
type SurveyResponseService interface {
	// Answers a question on behalf of a stored response and persists the
	// resulting navigation decision.
	SubmitAnswer(ctx context.Context, responseID, questionID string, answer *string) (*SubmitResult, error)
	// Reconcile compares a client preview with the server result. The server
	// result is always returned; a mismatch is logged as logic drift.
	Reconcile(preview Preview, result SubmitResult) SubmitResult
}

type surveyResponseServiceImpl struct {
	surveys       SurveyRepository
	responses     ResponseRepository
	surveyservice SurveyService
	logger        *zap.Logger
}

// Instantiate the `SurveyResponseService`.
func NewSurveyResponseService(surveys SurveyRepository, responses ResponseRepository, surveyservice SurveyService, logger *zap.Logger) SurveyResponseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &surveyResponseServiceImpl{
		surveys:       surveys,
		responses:     responses,
		surveyservice: surveyservice,
		logger:        logger,
	}
}

func (s *surveyResponseServiceImpl) SubmitAnswer(ctx context.Context, responseID, questionID string, answer *string) (*SubmitResult, error) {
	session, err := s.responses.GetSession(ctx, responseID)
	if err != nil {
		return nil, err
	}

	survey, err := s.surveys.GetSurvey(ctx, session.SurveyID)
	if err != nil {
		return nil, err
	}

	rules, err := s.surveys.ListRules(ctx, session.SurveyID)
	if err != nil {
		return nil, err
	}

	def := SurveyDefinition{Survey: survey, Rules: rules}

	next, err := s.surveyservice.AnswerQuestion(session, questionID, answer, def)
	if err != nil {
		s.logger.Warn("answer rejected",
			zap.String("response_id", responseID),
			zap.String("question_id", questionID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.responses.SaveProgress(ctx, session, questionID); err != nil {
		return nil, err
	}

	result := &SubmitResult{
		ResponseID: responseID,
		Next:       next,
		Visible:    logic.VisibleQuestions(survey, rules, session.Answers),
		Completed:  session.Completed,
		EndReason:  session.EndReason,
	}

	s.logger.Info("answer submitted",
		zap.String("response_id", responseID),
		zap.String("question_id", questionID),
		zap.String("next_question_id", session.CurrentID),
		zap.Bool("completed", session.Completed),
	)

	return result, nil
}

func (s *surveyResponseServiceImpl) Reconcile(preview Preview, result SubmitResult) SubmitResult {
	serverNext := ""
	if result.Next != nil {
		serverNext = result.Next.ID
	}

	if preview.Completed != result.Completed || (!result.Completed && preview.NextQuestionID != serverNext) {
		s.logger.Warn("logic drift",
			zap.String("response_id", result.ResponseID),
			zap.String("client_next_question_id", preview.NextQuestionID),
			zap.Bool("client_completed", preview.Completed),
			zap.String("server_next_question_id", serverNext),
			zap.Bool("server_completed", result.Completed),
		)
	}

	return result
}
