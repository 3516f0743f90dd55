package repository

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/internal/models"
	"github.com/paulexconde/justasking/internal/pkg/paginator"
	"github.com/paulexconde/justasking/internal/pkg/store"
	"github.com/paulexconde/justasking/internal/services"
	"github.com/paulexconde/justasking/pkg/fault"
)

//go:embed schema.sql
var schema string

const (
	selectSurvey = `SELECT id, title, status FROM surveys WHERE id = $1`

	selectSurveys = `SELECT id, title, status FROM surveys ORDER BY id`

	selectQuestions = `SELECT id, survey_id, position, text, question_type, is_required
		FROM questions WHERE survey_id = $1 ORDER BY position`

	selectRules = `SELECT id, survey_id, source_question_id, operator, condition_value, action,
		target_question_id, jump_to_question_id, priority
		FROM question_logic WHERE survey_id = $1 ORDER BY priority, id`

	selectResponse = `SELECT id, survey_id, current_question_id, completed, end_reason
		FROM responses WHERE id = $1`

	selectAnswers = `SELECT response_id, question_id, value FROM answers WHERE response_id = $1`

	selectVisits = `SELECT response_id, question_id, visit_count FROM response_visits WHERE response_id = $1`

	upsertAnswer = `INSERT INTO answers (response_id, question_id, value) VALUES ($1, $2, $3)
		ON CONFLICT (response_id, question_id) DO UPDATE SET value = EXCLUDED.value`

	updateResponse = `UPDATE responses SET current_question_id = $2, completed = $3, end_reason = $4
		WHERE id = $1`

	upsertVisits = `INSERT INTO response_visits (response_id, question_id, visit_count)
		SELECT $1, v.question_id, v.visit_count
		FROM unnest($2::text[], $3::int[]) AS v(question_id, visit_count)
		ON CONFLICT (response_id, question_id) DO UPDATE SET visit_count = EXCLUDED.visit_count`

	upsertSurvey = `INSERT INTO surveys (id, title, status) VALUES ($1, $2, 'published')
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`

	deleteRules     = `DELETE FROM question_logic WHERE survey_id = $1`
	deleteQuestions = `DELETE FROM questions WHERE survey_id = $1 AND NOT (id = ANY($2))`

	upsertQuestion = `INSERT INTO questions (id, survey_id, position, text, question_type, is_required)
		VALUES (:id, :survey_id, :position, :text, :question_type, :is_required)
		ON CONFLICT (id) DO UPDATE SET position = EXCLUDED.position, text = EXCLUDED.text,
			question_type = EXCLUDED.question_type, is_required = EXCLUDED.is_required`

	// Bounds how long a write waits on rows locked by a concurrent writer.
	setLockTimeout = `SET LOCAL lock_timeout = '5s'`

	insertRule = `INSERT INTO question_logic (id, survey_id, source_question_id, operator, condition_value,
			action, target_question_id, jump_to_question_id, priority)
		VALUES (:id, :survey_id, :source_question_id, :operator, :condition_value,
			:action, :target_question_id, :jump_to_question_id, :priority)`
)

// SurveyRepository reads and writes surveys, their questions and their rules.
type SurveyRepository struct {
	surveys   store.Datastorer[models.Survey]
	questions store.Datastorer[models.Question]
	rules     store.Datastorer[models.QuestionLogic]
}

func NewSurveyRepository(db *sqlx.DB) *SurveyRepository {
	r := &SurveyRepository{
		surveys:   store.NewDataStore[models.Survey](db),
		questions: store.NewDataStore[models.Question](db),
		rules:     store.NewDataStore[models.QuestionLogic](db),
	}
	r.surveys.SetHooks(store.Hooks{PreTx: []func(context.Context, *sqlx.Tx) error{lockTimeout}})
	return r
}

func lockTimeout(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, setLockTimeout)
	return err
}

// Migrate creates the tables used by the repositories when missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", store.MapError(err))
	}
	return nil
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, surveyID string) (logic.Survey, error) {
	row, err := r.surveys.Get(ctx, selectSurvey, surveyID)
	if err != nil {
		return logic.Survey{}, fmt.Errorf("get survey %s: %w", surveyID, err)
	}

	rows, err := r.questions.Select(ctx, selectQuestions, surveyID)
	if err != nil {
		return logic.Survey{}, fmt.Errorf("list questions of %s: %w", surveyID, err)
	}

	survey := logic.Survey{ID: row.ID, Title: row.Title, Questions: make([]logic.Question, 0, len(rows))}
	for _, q := range rows {
		survey.Questions = append(survey.Questions, q.ToLogic())
	}
	return survey, nil
}

// ListSurveys returns one page of stored surveys ordered by ID.
func (r *SurveyRepository) ListSurveys(ctx context.Context, page, limit int) (*paginator.Page[models.Survey], error) {
	return paginator.NewPaginator(r.surveys).PaginateQuery(ctx, selectSurveys, nil, page, limit)
}

func (r *SurveyRepository) ListRules(ctx context.Context, surveyID string) ([]logic.Rule, error) {
	rows, err := r.rules.Select(ctx, selectRules, surveyID)
	if err != nil {
		return nil, fmt.Errorf("list rules of %s: %w", surveyID, err)
	}

	rules := make([]logic.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.ToLogic()
		if err != nil {
			return nil, fault.NewInternalError(fmt.Sprintf("survey %s", surveyID), err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// SaveDefinition replaces the questions and rules of a survey in one
// transaction. Questions no longer in the survey are removed.
func (r *SurveyRepository) SaveDefinition(ctx context.Context, survey logic.Survey, rules []logic.Rule) error {
	ids := make([]string, 0, len(survey.Questions))
	questions := make([]models.Question, 0, len(survey.Questions))
	for _, q := range survey.Questions {
		ids = append(ids, q.ID)
		questions = append(questions, models.QuestionFromLogic(survey.ID, q))
	}

	return r.surveys.Tx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertSurvey, survey.ID, survey.Title); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteRules, survey.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteQuestions, survey.ID, pq.Array(ids)); err != nil {
			return err
		}
		for _, q := range questions {
			if _, err := tx.NamedExecContext(ctx, upsertQuestion, q); err != nil {
				return fmt.Errorf("question %s: %w", q.ID, err)
			}
		}
		for _, rule := range rules {
			if _, err := tx.NamedExecContext(ctx, insertRule, models.QuestionLogicFromLogic(survey.ID, rule)); err != nil {
				return fmt.Errorf("rule %s: %w", rule.ID, err)
			}
		}
		return nil
	})
}

// ResponseRepository persists respondent sessions.
type ResponseRepository struct {
	responses store.Datastorer[models.Response]
	answers   store.Datastorer[models.Answer]
	visits    store.Datastorer[models.Visit]
}

func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	r := &ResponseRepository{
		responses: store.NewDataStore[models.Response](db),
		answers:   store.NewDataStore[models.Answer](db),
		visits:    store.NewDataStore[models.Visit](db),
	}
	r.responses.SetHooks(store.Hooks{PreTx: []func(context.Context, *sqlx.Tx) error{lockTimeout}})
	return r
}

func (r *ResponseRepository) GetSession(ctx context.Context, responseID string) (*services.SurveySession, error) {
	row, err := r.responses.Get(ctx, selectResponse, responseID)
	if err != nil {
		return nil, fmt.Errorf("get response %s: %w", responseID, err)
	}

	answers, err := r.answers.Select(ctx, selectAnswers, responseID)
	if err != nil {
		return nil, fmt.Errorf("list answers of %s: %w", responseID, err)
	}

	visits, err := r.visits.Select(ctx, selectVisits, responseID)
	if err != nil {
		return nil, fmt.Errorf("list visits of %s: %w", responseID, err)
	}

	session := &services.SurveySession{
		ID:        row.ID,
		SurveyID:  row.SurveyID,
		Answers:   models.AnswersToLogic(answers),
		CurrentID: row.CurrentQuestionID.String,
		Visits:    make(map[string]int, len(visits)),
		Completed: row.Completed,
		EndReason: logic.Reason(row.EndReason.String),
	}
	for _, v := range visits {
		session.Visits[v.QuestionID] = v.Count
	}
	return session, nil
}

func (r *ResponseRepository) SaveProgress(ctx context.Context, session *services.SurveySession, questionID string) error {
	var current *string
	if session.CurrentID != "" {
		current = &session.CurrentID
	}
	var reason *string
	if session.EndReason != "" {
		s := string(session.EndReason)
		reason = &s
	}

	questionIDs, counts := visitColumns(session.Visits)

	return r.responses.Tx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertAnswer, session.ID, questionID, models.NullString(session.Answers.Value(questionID))); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, updateResponse, session.ID, models.NullString(current), session.Completed, models.NullString(reason))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fault.ErrNotFound
		}

		if len(questionIDs) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, upsertVisits, session.ID, pq.Array(questionIDs), pq.Array(counts))
		return err
	})
}

// visitColumns splits visit counts into parallel arrays sorted by question ID.
func visitColumns(visits map[string]int) ([]string, []int64) {
	ids := make([]string, 0, len(visits))
	for id := range visits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	counts := make([]int64, len(ids))
	for i, id := range ids {
		counts[i] = int64(visits[id])
	}
	return ids, counts
}
