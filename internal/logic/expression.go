package logic

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Condition is the "when" half of a rule: an operator applied to the answer
// of a source question.
type Condition struct {
	SourceQuestionID string
	Operator         Operator
	Value            string
}

// answersVar is the map variable used to reference questions whose IDs are
// not valid identifiers, e.g. answers["5f0c-..."].
const answersVar = "answers"

var (
	errNotCondition = errors.New("expression is not a single-question condition")

	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	numberPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

	reserved = map[string]bool{
		answersVar: true, "not": true, "and": true, "or": true, "in": true,
		"matches": true, "contains": true, "startsWith": true, "endsWith": true,
		"true": true, "false": true, "nil": true, "let": true, "len": true,
	}

	callOperators = map[string]Operator{
		"isAnswered":    IsAnswered,
		"isNotAnswered": IsNotAnswered,
		"isEmpty":       IsEmpty,
		"isNotEmpty":    IsNotEmpty,
	}

	binaryOperators = map[string]Operator{
		"==":       Equals,
		"!=":       NotEquals,
		">":        GreaterThan,
		"<":        LessThan,
		">=":       GreaterThanOrEquals,
		"<=":       LessThanOrEquals,
		"contains": Contains,
	}

	// mirrored gives the operator to use when the literal is on the left.
	mirrored = map[Operator]Operator{
		Equals:              Equals,
		NotEquals:           NotEquals,
		GreaterThan:         LessThan,
		LessThan:            GreaterThan,
		GreaterThanOrEquals: LessThanOrEquals,
		LessThanOrEquals:    GreaterThanOrEquals,
	}

	negated = map[Operator]Operator{
		Equals:        NotEquals,
		NotEquals:     Equals,
		Contains:      NotContains,
		NotContains:   Contains,
		IsAnswered:    IsNotAnswered,
		IsNotAnswered: IsAnswered,
		IsEmpty:       IsNotEmpty,
		IsNotEmpty:    IsEmpty,
	}
)

// ParseCondition reads a condition written in expr-lang syntax, such as
//
//	q1 == "No"
//	q3 >= 7
//	q2 not contains "spam"
//	isAnswered(q4)
//	answers["5f0c9a"] != nil
func ParseCondition(expression string) (Condition, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return Condition{}, err
	}

	cond, err := conditionFromNode(tree.Node)
	if err != nil {
		return Condition{}, fmt.Errorf("%q: %w", expression, err)
	}
	return cond, nil
}

func conditionFromNode(node ast.Node) (Condition, error) {
	switch n := node.(type) {
	case *ast.UnaryNode:
		if n.Operator != "not" && n.Operator != "!" {
			return Condition{}, errNotCondition
		}
		inner, err := conditionFromNode(n.Node)
		if err != nil {
			return Condition{}, err
		}
		op, ok := negated[inner.Operator]
		if !ok {
			return Condition{}, fmt.Errorf("operator %s cannot be negated", inner.Operator)
		}
		inner.Operator = op
		return inner, nil

	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return Condition{}, errNotCondition
		}
		op, ok := callOperators[callee.Value]
		if !ok {
			return Condition{}, fmt.Errorf("unknown function %s", callee.Value)
		}
		if len(n.Arguments) != 1 {
			return Condition{}, fmt.Errorf("%s takes exactly one question", callee.Value)
		}
		source, ok := questionRef(n.Arguments[0])
		if !ok {
			return Condition{}, fmt.Errorf("%s argument is not a question", callee.Value)
		}
		return Condition{SourceQuestionID: source, Operator: op}, nil

	case *ast.BinaryNode:
		op, ok := binaryOperators[n.Operator]
		if !ok {
			return Condition{}, fmt.Errorf("unsupported operator %s", n.Operator)
		}

		source, left := questionRef(n.Left)
		literal := n.Right
		if !left {
			var right bool
			source, right = questionRef(n.Right)
			if !right {
				return Condition{}, errNotCondition
			}
			if op, ok = mirrored[op]; !ok {
				return Condition{}, fmt.Errorf("question must be on the left of %s", n.Operator)
			}
			literal = n.Left
		}

		if _, isNil := literal.(*ast.NilNode); isNil {
			switch op {
			case Equals:
				return Condition{SourceQuestionID: source, Operator: IsNotAnswered}, nil
			case NotEquals:
				return Condition{SourceQuestionID: source, Operator: IsAnswered}, nil
			}
			return Condition{}, fmt.Errorf("nil can only be compared with == or !=")
		}

		value, ok := literalValue(literal)
		if !ok {
			return Condition{}, errNotCondition
		}
		return Condition{SourceQuestionID: source, Operator: op, Value: value}, nil
	}

	return Condition{}, errNotCondition
}

// questionRef returns the question ID referenced by q1 or answers["q1"].
func questionRef(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		if reserved[n.Value] {
			return "", false
		}
		return n.Value, true
	case *ast.MemberNode:
		base, ok := n.Node.(*ast.IdentifierNode)
		if !ok || base.Value != answersVar {
			return "", false
		}
		prop, ok := n.Property.(*ast.StringNode)
		if !ok {
			return "", false
		}
		return prop.Value, true
	}
	return "", false
}

func literalValue(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, true
	case *ast.IntegerNode:
		return strconv.Itoa(n.Value), true
	case *ast.FloatNode:
		return strconv.FormatFloat(n.Value, 'f', -1, 64), true
	case *ast.BoolNode:
		return strconv.FormatBool(n.Value), true
	case *ast.UnaryNode:
		if n.Operator != "-" && n.Operator != "+" {
			return "", false
		}
		v, ok := literalValue(n.Node)
		if !ok || !numberPattern.MatchString(v) {
			return "", false
		}
		if n.Operator == "-" {
			if v[0] == '-' {
				return v[1:], true
			}
			return "-" + v, true
		}
		return v, true
	}
	return "", false
}

// canonicalNumber reports whether v reads back unchanged as a bare number
// literal. Values like "010", "2.50" or an overflowing integer stay quoted.
func canonicalNumber(v string) bool {
	if !numberPattern.MatchString(v) {
		return false
	}
	tree, err := parser.Parse(v)
	if err != nil {
		return false
	}
	got, ok := literalValue(tree.Node)
	return ok && got == v
}

// FormatCondition renders the condition of r in the syntax ParseCondition
// accepts.
func FormatCondition(r Rule) string {
	ref := r.SourceQuestionID
	if !identPattern.MatchString(ref) || reserved[ref] {
		ref = answersVar + "[" + strconv.Quote(ref) + "]"
	}

	switch r.Operator {
	case IsAnswered:
		return "isAnswered(" + ref + ")"
	case IsNotAnswered:
		return "isNotAnswered(" + ref + ")"
	case IsEmpty:
		return "isEmpty(" + ref + ")"
	case IsNotEmpty:
		return "isNotEmpty(" + ref + ")"
	}

	value := strconv.Quote(r.ComparisonValue)
	switch r.Operator {
	case GreaterThan, LessThan, GreaterThanOrEquals, LessThanOrEquals:
		if canonicalNumber(r.ComparisonValue) {
			value = r.ComparisonValue
		}
	}

	switch r.Operator {
	case Equals:
		return ref + " == " + value
	case NotEquals:
		return ref + " != " + value
	case Contains:
		return ref + " contains " + value
	case NotContains:
		return "not (" + ref + " contains " + value + ")"
	case GreaterThan:
		return ref + " > " + value
	case LessThan:
		return ref + " < " + value
	case GreaterThanOrEquals:
		return ref + " >= " + value
	case LessThanOrEquals:
		return ref + " <= " + value
	}
	return "false"
}
