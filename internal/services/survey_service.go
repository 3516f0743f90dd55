package services

import (
	"fmt"

	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/pkg/fault"
	"go.uber.org/zap"
)

// DefaultMaxVisits bounds how often one session may be routed to the same
// question before navigation is treated as an authoring loop.
const DefaultMaxVisits = 25

// SurveyDefinition is a published survey together with its rules.
type SurveyDefinition struct {
	Survey logic.Survey
	Rules  []logic.Rule
}

// Holds the state of the current state of the respondent on the survey.
//
// Typically what question they are when they paused or leave it.
type SurveySession struct {
	ID        string
	SurveyID  string
	Answers   logic.Answers
	CurrentID string
	Visits    map[string]int // questionID -> times routed there
	Completed bool
	EndReason logic.Reason
}

// Handles the survey flow.
type SurveyService interface {
	// Start routes a fresh session to the first visible question.
	Start(session *SurveySession, def SurveyDefinition) (*logic.Question, error)
	// Answers the question and advances the session. A nil question with a
	// nil error means the session is complete.
	AnswerQuestion(session *SurveySession, questionID string, answer *string, def SurveyDefinition) (*logic.Question, error)
	// Determines what is the next question.
	GetNextQuestionWithLogic(def SurveyDefinition, questionID string, answers logic.Answers) (logic.Decision, error)
}

type surveyServiceImpl struct {
	logger    *zap.Logger
	maxVisits int
}

// Instantiate the SurveyService. A nil logger discards logs and a
// non-positive maxVisits uses DefaultMaxVisits.
func NewSurveyService(logger *zap.Logger, maxVisits int) SurveyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxVisits <= 0 {
		maxVisits = DefaultMaxVisits
	}
	return &surveyServiceImpl{logger: logger, maxVisits: maxVisits}
}

func (s *surveyServiceImpl) Start(session *SurveySession, def SurveyDefinition) (*logic.Question, error) {
	if session.Completed {
		return nil, fault.NewClientError("start survey", fault.ErrSurveyCompleted)
	}
	if session.Answers == nil {
		session.Answers = make(logic.Answers)
	}

	visible := logic.VisibleQuestions(def.Survey, def.Rules, session.Answers)
	if len(visible) == 0 {
		s.complete(session, logic.ReasonExhausted)
		return nil, nil
	}

	return s.route(session, def, visible[0])
}

func (s *surveyServiceImpl) AnswerQuestion(session *SurveySession, questionID string, answer *string, def SurveyDefinition) (*logic.Question, error) {
	if session.Completed {
		return nil, fault.NewClientError("answer question", fault.ErrSurveyCompleted)
	}

	if _, ok := def.Survey.Question(questionID); !ok {
		return nil, fault.NewClientError(fmt.Sprintf("invalid question %q", questionID), fault.ErrUnknownQuestion)
	}

	if session.Answers == nil {
		session.Answers = make(logic.Answers)
	}

	if !logic.Visibility(def.Survey, def.Rules, session.Answers)[questionID] {
		return nil, fault.NewClientError(fmt.Sprintf("question %q", questionID), fault.ErrQuestionHidden)
	}

	session.Answers[questionID] = answer

	if rule, ok := logic.EndingRule(def.Rules, session.Answers); ok {
		s.logger.Info("survey ended by rule",
			zap.String("session_id", session.ID),
			zap.String("rule_id", rule.ID),
			zap.String("source_question_id", rule.SourceQuestionID),
		)
		s.complete(session, logic.ReasonEndRule)
		return nil, nil
	}

	decision, err := s.GetNextQuestionWithLogic(def, questionID, session.Answers)
	if err != nil {
		return nil, err
	}

	for _, ruleID := range decision.VoidJumps {
		s.logger.Debug("jump target hidden, using natural order",
			zap.String("session_id", session.ID),
			zap.String("rule_id", ruleID),
		)
	}

	if decision.Ended {
		s.complete(session, decision.Reason)
		return nil, nil
	}

	return s.route(session, def, decision.Next)
}

func (s *surveyServiceImpl) GetNextQuestionWithLogic(def SurveyDefinition, questionID string, answers logic.Answers) (logic.Decision, error) {
	return logic.Decide(def.Survey, def.Rules, questionID, answers)
}

// route moves the session to questionID, enforcing the visit bound.
func (s *surveyServiceImpl) route(session *SurveySession, def SurveyDefinition, questionID string) (*logic.Question, error) {
	next, ok := def.Survey.Question(questionID)
	if !ok {
		return nil, fault.NewInternalError(fmt.Sprintf("route to %q", questionID), fault.ErrUnknownQuestion)
	}

	if session.Visits == nil {
		session.Visits = make(map[string]int)
	}
	if session.Visits[questionID] >= s.maxVisits {
		s.logger.Error("navigation loop detected",
			zap.String("session_id", session.ID),
			zap.String("survey_id", session.SurveyID),
			zap.String("question_id", questionID),
			zap.Int("visits", session.Visits[questionID]),
		)
		return nil, fault.NewInternalError(
			fmt.Sprintf("question %q visited %d times in survey %q", questionID, session.Visits[questionID], session.SurveyID),
			fault.ErrNavigationLoop,
		)
	}

	session.Visits[questionID]++
	session.CurrentID = questionID
	return &next, nil
}

func (s *surveyServiceImpl) complete(session *SurveySession, reason logic.Reason) {
	session.Completed = true
	session.CurrentID = ""
	session.EndReason = reason
	s.logger.Debug("survey session completed",
		zap.String("session_id", session.ID),
		zap.String("reason", string(reason)),
	)
}
