package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/internal/services"
	"github.com/paulexconde/justasking/internal/surveyfile"
	"github.com/spf13/cobra"
)

func (a *app) simulateCmd() *cobra.Command {
	var answerFlags []string

	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Walk a survey file with scripted answers and print the path taken",
		Long: `Walk a survey file from its first visible question. Each question reached
is answered with the value given by --answer id=value; questions without a
scripted value are left unanswered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := surveyfile.Load(args[0])
			if err != nil {
				return err
			}
			script, err := parseAnswers(answerFlags)
			if err != nil {
				return err
			}
			return a.simulate(cmd.OutOrStdout(), def, script)
		},
	}

	cmd.Flags().StringArrayVarP(&answerFlags, "answer", "a", nil, "scripted answer as question=value (repeatable)")
	return cmd
}

func parseAnswers(flags []string) (logic.Answers, error) {
	answers := make(logic.Answers, len(flags))
	for _, f := range flags {
		id, value, ok := strings.Cut(f, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("answer %q: want question=value", f)
		}
		answers[id] = logic.Str(value)
	}
	return answers, nil
}

func (a *app) simulate(w io.Writer, def services.SurveyDefinition, script logic.Answers) error {
	svc := services.NewSurveyService(a.log, a.cfg.Session.MaxVisits)
	session := &services.SurveySession{
		ID:       uuid.NewString(),
		SurveyID: def.Survey.ID,
		Answers:  make(logic.Answers),
	}

	q, err := svc.Start(session, def)
	if err != nil {
		return err
	}

	for q != nil {
		answer := script.Value(q.ID)
		fmt.Fprintf(w, "%s %s\n", q.ID, describeAnswer(answer))

		if q, err = svc.AnswerQuestion(session, q.ID, answer, def); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "completed: %s\n", session.EndReason)
	fmt.Fprintf(w, "visible: %s\n", strings.Join(logic.VisibleQuestions(def.Survey, def.Rules, session.Answers), ", "))
	return nil
}

func describeAnswer(v *string) string {
	if v == nil {
		return "(unanswered)"
	}
	return "= " + strconv.Quote(*v)
}
