// Package filter implements the disjunctive-normal-form rule evaluator of
// spec.md §4.6: a Rule is a list of AND-groups, each AND-group a list of
// atoms, and evaluation is any(all(atom)).
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Field is a field an atom may compare.
type Field string

const (
	FieldTitle     Field = "title"
	FieldTags      Field = "tags"
	FieldPageCount Field = "pageCount"
	FieldFavTime   Field = "favTime"
	FieldPubTime   Field = "pubTime"
)

// Op is a comparison operator.
type Op string

const (
	OpEquals      Op = "equals"
	OpContains    Op = "contains"
	OpIContains   Op = "icontains"
	OpPrefix      Op = "prefix"
	OpSuffix      Op = "suffix"
	OpMatchesRgx  Op = "matchesRegex"
	OpGreaterThan Op = "greaterThan"
	OpLessThan    Op = "lessThan"
	OpBetween     Op = "between"
)

// Atom is either {field, op, value} or a negated inner atom.
type Atom struct {
	Field Field
	Op    Op
	Value any // string, int, [2]int64 (unix seconds) depending on Field/Op

	Not   bool
	Inner *Atom
}

// AndGroup is a conjunction of atoms.
type AndGroup []Atom

// Rule is a disjunction of AndGroups. An empty rule accepts everything.
type Rule []AndGroup

// Input is the subset of Video fields the evaluator needs. Kept independent
// of package model to avoid an import cycle (model.Source embeds a Rule).
type Input struct {
	Title     string
	Tags      []string
	PageCount int
	FavTime   time.Time
	PubTime   time.Time
}

// Evaluate implements `evaluate(rule, v) == any(all(atom) for and_group in rule)`;
// an empty rule is true. Evaluation short-circuits both at the OR and AND
// levels.
func Evaluate(r Rule, in Input) (bool, error) {
	if len(r) == 0 {
		return true, nil
	}
	for _, group := range r {
		ok, err := evalGroup(group, in)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evalGroup(group AndGroup, in Input) (bool, error) {
	for _, atom := range group {
		ok, err := evalAtom(atom, in)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalAtom(a Atom, in Input) (bool, error) {
	if a.Op == "" && a.Inner != nil {
		// {field: "not", inner: atom}
		ok, err := evalAtom(*a.Inner, in)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	if a.Not {
		inner := a
		inner.Not = false
		ok, err := evalAtom(inner, in)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}

	switch a.Field {
	case FieldTitle:
		return evalStringOp(a.Op, in.Title, a.Value)
	case FieldTags:
		return evalTagsOp(a.Op, in.Tags, a.Value)
	case FieldPageCount:
		return evalIntOp(a.Op, int64(in.PageCount), a.Value)
	case FieldFavTime:
		return evalTimeOp(a.Op, in.FavTime, a.Value)
	case FieldPubTime:
		return evalTimeOp(a.Op, in.PubTime, a.Value)
	default:
		return false, fmt.Errorf("filter: unknown field %q", a.Field)
	}
}

func evalStringOp(op Op, actual string, value any) (bool, error) {
	want, _ := value.(string)
	switch op {
	case OpEquals:
		return actual == want, nil
	case OpContains:
		return strings.Contains(actual, want), nil
	case OpIContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(want)), nil
	case OpPrefix:
		return strings.HasPrefix(actual, want), nil
	case OpSuffix:
		return strings.HasSuffix(actual, want), nil
	case OpMatchesRgx:
		re, err := regexp.Compile(want)
		if err != nil {
			return false, fmt.Errorf("filter: invalid regex %q: %w", want, err)
		}
		return re.MatchString(actual), nil
	default:
		return false, fmt.Errorf("filter: op %q not supported for string fields", op)
	}
}

func evalTagsOp(op Op, tags []string, value any) (bool, error) {
	for _, tag := range tags {
		ok, err := evalStringOp(op, tag, value)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evalIntOp(op Op, actual int64, value any) (bool, error) {
	switch op {
	case OpEquals:
		want, err := toInt64(value)
		if err != nil {
			return false, err
		}
		return actual == want, nil
	case OpGreaterThan:
		want, err := toInt64(value)
		if err != nil {
			return false, err
		}
		return actual > want, nil
	case OpLessThan:
		want, err := toInt64(value)
		if err != nil {
			return false, err
		}
		return actual < want, nil
	case OpBetween:
		lo, hi, err := toRange(value)
		if err != nil {
			return false, err
		}
		return actual >= lo && actual <= hi, nil
	default:
		return false, fmt.Errorf("filter: op %q not supported for numeric fields", op)
	}
}

func evalTimeOp(op Op, actual time.Time, value any) (bool, error) {
	switch op {
	case OpEquals:
		want, err := toTime(value)
		if err != nil {
			return false, err
		}
		return actual.Equal(want), nil
	case OpGreaterThan: // "later than"
		want, err := toTime(value)
		if err != nil {
			return false, err
		}
		return actual.After(want), nil
	case OpLessThan: // "earlier than"
		want, err := toTime(value)
		if err != nil {
			return false, err
		}
		return actual.Before(want), nil
	case OpBetween:
		lo, hi, err := toRange(value)
		if err != nil {
			return false, err
		}
		sec := actual.Unix()
		return sec >= lo && sec <= hi, nil
	default:
		return false, fmt.Errorf("filter: op %q not supported for time fields", op)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("filter: expected numeric value, got %T", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case int64:
		return time.Unix(t, 0), nil
	case int:
		return time.Unix(int64(t), 0), nil
	default:
		return time.Time{}, fmt.Errorf("filter: expected time value, got %T", v)
	}
}

func toRange(v any) (int64, int64, error) {
	arr, ok := v.([2]int64)
	if ok {
		return arr[0], arr[1], nil
	}
	slice, ok := v.([]int64)
	if ok && len(slice) == 2 {
		return slice[0], slice[1], nil
	}
	return 0, 0, fmt.Errorf("filter: between requires a two-element value, got %T", v)
}
