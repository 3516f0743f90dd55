// Package surveyfile reads and writes survey definitions as YAML.
//
// A file lists the questions in natural order and the rules that branch
// between them. A rule condition is written either as an expression
//
//	when: q1 == "No"
//
// or spelled out with source, operator and value.
package surveyfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/paulexconde/justasking/internal/logic"
	"github.com/paulexconde/justasking/internal/services"
	"github.com/paulexconde/justasking/pkg/fault"
	"gopkg.in/yaml.v3"
)

var ErrInvalidFile = errors.New("invalid survey file")

type file struct {
	ID        string     `yaml:"id"`
	Title     string     `yaml:"title"`
	Questions []question `yaml:"questions"`
	Rules     []rule     `yaml:"rules,omitempty"`
}

type question struct {
	ID       string `yaml:"id"`
	Order    int    `yaml:"order,omitempty"` // defaults to the list position
	Type     string `yaml:"type"`
	Text     string `yaml:"text,omitempty"`
	Required bool   `yaml:"required,omitempty"`
}

type rule struct {
	ID       string `yaml:"id,omitempty"`
	When     string `yaml:"when,omitempty"`
	Source   string `yaml:"source,omitempty"`
	Operator string `yaml:"operator,omitempty"`
	Value    string `yaml:"value,omitempty"`
	Action   string `yaml:"action"`
	Target   string `yaml:"target,omitempty"`
	JumpTo   string `yaml:"jump_to,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
}

// Load reads the survey file at path.
func Load(path string) (services.SurveyDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return services.SurveyDefinition{}, err
	}
	defer f.Close()

	def, err := Decode(f)
	if err != nil {
		return services.SurveyDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Decode parses a survey file. Unknown keys are rejected. Rules without an
// ID get a time-ordered UUID so that ties in priority keep file order.
func Decode(r io.Reader) (services.SurveyDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw file
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return services.SurveyDefinition{}, invalid("empty document")
		}
		return services.SurveyDefinition{}, fault.NewClientError("decode survey", errors.Join(ErrInvalidFile, err))
	}

	if raw.ID == "" {
		return services.SurveyDefinition{}, invalid("survey id is required")
	}

	def := services.SurveyDefinition{
		Survey: logic.Survey{ID: raw.ID, Title: raw.Title, Questions: make([]logic.Question, 0, len(raw.Questions))},
		Rules:  make([]logic.Rule, 0, len(raw.Rules)),
	}

	seen := make(map[string]bool, len(raw.Questions))
	orders := make(map[int]string, len(raw.Questions))
	for i, q := range raw.Questions {
		if q.ID == "" {
			return services.SurveyDefinition{}, invalid("question %d: id is required", i+1)
		}
		if seen[q.ID] {
			return services.SurveyDefinition{}, invalid("question %d: duplicate id %q", i+1, q.ID)
		}
		seen[q.ID] = true

		qt := logic.QuestionType(q.Type)
		if !qt.Valid() {
			return services.SurveyDefinition{}, invalid("question %s: unknown type %q", q.ID, q.Type)
		}

		order := q.Order
		if order == 0 {
			order = i + 1
		}
		if prev, dup := orders[order]; dup {
			return services.SurveyDefinition{}, invalid("question %s: order %d already used by %s", q.ID, order, prev)
		}
		orders[order] = q.ID
		def.Survey.Questions = append(def.Survey.Questions, logic.Question{
			ID:         q.ID,
			Order:      order,
			Type:       qt,
			Text:       q.Text,
			IsRequired: q.Required,
		})
	}

	for i, r := range raw.Rules {
		converted, err := r.toLogic()
		if err != nil {
			return services.SurveyDefinition{}, invalid("rule %d: %v", i+1, err)
		}
		if converted.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return services.SurveyDefinition{}, err
			}
			converted.ID = id.String()
		}
		def.Rules = append(def.Rules, converted)
	}

	return def, nil
}

func (r rule) toLogic() (logic.Rule, error) {
	action, err := logic.ParseAction(r.Action)
	if err != nil {
		return logic.Rule{}, err
	}

	var cond logic.Condition
	switch {
	case r.When != "" && (r.Source != "" || r.Operator != "" || r.Value != ""):
		return logic.Rule{}, errors.New("use either when or source/operator/value")
	case r.When != "":
		if cond, err = logic.ParseCondition(r.When); err != nil {
			return logic.Rule{}, err
		}
	default:
		if r.Source == "" {
			return logic.Rule{}, errors.New("a condition is required")
		}
		op, err := logic.ParseOperator(r.Operator)
		if err != nil {
			return logic.Rule{}, err
		}
		cond = logic.Condition{SourceQuestionID: r.Source, Operator: op, Value: r.Value}
	}

	return logic.Rule{
		ID:               r.ID,
		SourceQuestionID: cond.SourceQuestionID,
		Operator:         cond.Operator,
		ComparisonValue:  cond.Value,
		Action:           action,
		TargetQuestionID: r.Target,
		JumpToQuestionID: r.JumpTo,
		Priority:         r.Priority,
	}, nil
}

// Encode writes def in the format Decode reads, with conditions rendered as
// expressions.
func Encode(w io.Writer, def services.SurveyDefinition) error {
	out := file{ID: def.Survey.ID, Title: def.Survey.Title}
	for _, q := range def.Survey.Questions {
		out.Questions = append(out.Questions, question{
			ID:       q.ID,
			Order:    q.Order,
			Type:     string(q.Type),
			Text:     q.Text,
			Required: q.IsRequired,
		})
	}
	for _, r := range def.Rules {
		out.Rules = append(out.Rules, rule{
			ID:       r.ID,
			When:     logic.FormatCondition(r),
			Action:   r.Action.String(),
			Target:   r.TargetQuestionID,
			JumpTo:   r.JumpToQuestionID,
			Priority: r.Priority,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func invalid(format string, args ...any) error {
	return fault.NewClientError(fmt.Sprintf(format, args...), ErrInvalidFile)
}
