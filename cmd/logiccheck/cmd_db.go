package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/internal/pkg/paginator"
	"github.com/paulexconde/justasking/internal/pkg/store"
	"github.com/paulexconde/justasking/internal/pkg/workerpool"
	"github.com/paulexconde/justasking/internal/repository"
	"github.com/paulexconde/justasking/internal/services"
	"github.com/paulexconde/justasking/internal/surveyfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Work with surveys stored in Postgres",
	}
	cmd.AddCommand(
		a.dbMigrateCmd(),
		a.dbListCmd(),
		a.dbImportCmd(),
		a.dbExportCmd(),
		a.dbValidateCmd(),
		a.dbAnswerCmd(),
	)
	return cmd
}

const (
	connectAttempts = 3
	connectDelay    = time.Second
)

func (a *app) openDB(ctx context.Context) (*sqlx.DB, error) {
	if a.cfg.Database.DSN == "" {
		return nil, errors.New("database.dsn is not configured (set JUSTASKING_DATABASE_DSN)")
	}

	var db *sqlx.DB
	err := workerpool.Retry(ctx, connectAttempts, connectDelay, a.log, func() error {
		var err error
		db, err = store.Open(ctx, a.cfg.Database.DSN)
		return err
	})
	return db, err
}

func (a *app) dbMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the survey tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			a.log.Info("schema migrated")
			return nil
		},
	}
}

func (a *app) dbListCmd() *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored surveys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := repository.NewSurveyRepository(db).ListSurveys(cmd.Context(), page, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range result.Items {
				fmt.Fprintf(out, "%s\t%s\t%s\n", s.ID, s.Status, s.Title)
			}
			fmt.Fprintf(out, "page %d of %d (%d surveys)\n", result.CurrentPage, result.TotalPages, result.TotalItems)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", paginator.DefaultLimit, "surveys per page")
	return cmd
}

func (a *app) dbImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Store a survey file, replacing the survey's questions and rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := surveyfile.Load(args[0])
			if err != nil {
				return err
			}
			if err := logic.Validate(def.Survey, def.Rules).Err(); err != nil {
				return err
			}

			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.NewSurveyRepository(db).SaveDefinition(cmd.Context(), def.Survey, def.Rules); err != nil {
				return err
			}
			a.log.Info("survey imported",
				zap.String("survey_id", def.Survey.ID),
				zap.Int("questions", len(def.Survey.Questions)),
				zap.Int("rules", len(def.Rules)),
			)
			return nil
		},
	}
}

func (a *app) loadDefinition(ctx context.Context, db *sqlx.DB, surveyID string) (services.SurveyDefinition, error) {
	repo := repository.NewSurveyRepository(db)

	survey, err := repo.GetSurvey(ctx, surveyID)
	if err != nil {
		return services.SurveyDefinition{}, err
	}
	rules, err := repo.ListRules(ctx, surveyID)
	if err != nil {
		return services.SurveyDefinition{}, err
	}
	return services.SurveyDefinition{Survey: survey, Rules: rules}, nil
}

func (a *app) dbExportCmd() *cobra.Command {
	var surveyID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a stored survey as a survey file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			def, err := a.loadDefinition(cmd.Context(), db, surveyID)
			if err != nil {
				return err
			}
			return surveyfile.Encode(cmd.OutOrStdout(), def)
		},
	}

	cmd.Flags().StringVar(&surveyID, "survey", "", "survey ID")
	_ = cmd.MarkFlagRequired("survey")
	return cmd
}

func (a *app) dbValidateCmd() *cobra.Command {
	var surveyID string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the rules of a stored survey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			def, err := a.loadDefinition(cmd.Context(), db, surveyID)
			if err != nil {
				return err
			}

			report := logic.Validate(def.Survey, def.Rules)
			printReports(cmd.OutOrStdout(), []fileReport{{
				Path:     "survey " + surveyID,
				Errors:   report.Errors,
				Warnings: report.Warnings,
			}})
			return report.Err()
		},
	}

	cmd.Flags().StringVar(&surveyID, "survey", "", "survey ID")
	_ = cmd.MarkFlagRequired("survey")
	return cmd
}

func (a *app) dbAnswerCmd() *cobra.Command {
	var (
		responseID  string
		questionID  string
		value       string
		unanswered  bool
		previewNext string
	)

	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Submit an answer on behalf of a stored response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			svc := services.NewSurveyResponseService(
				repository.NewSurveyRepository(db),
				repository.NewResponseRepository(db),
				services.NewSurveyService(a.log, a.cfg.Session.MaxVisits),
				a.log,
			)

			var answer *string
			if !unanswered {
				answer = &value
			}

			result, err := svc.SubmitAnswer(cmd.Context(), responseID, questionID, answer)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("preview-next") {
				*result = svc.Reconcile(services.Preview{NextQuestionID: previewNext, Completed: previewNext == ""}, *result)
			}

			out := cmd.OutOrStdout()
			if result.Completed {
				fmt.Fprintf(out, "completed: %s\n", result.EndReason)
				return nil
			}
			fmt.Fprintf(out, "next: %s\n", result.Next.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&responseID, "response", "", "response ID")
	cmd.Flags().StringVar(&questionID, "question", "", "question ID")
	cmd.Flags().StringVar(&value, "value", "", "answer value")
	cmd.Flags().BoolVar(&unanswered, "unanswered", false, "record the question as unanswered")
	cmd.Flags().StringVar(&previewNext, "preview-next", "", "next question the client computed; empty means completion")
	_ = cmd.MarkFlagRequired("response")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}
