package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kaorin/bilisync/internal/filter"
)

// ruleFromConfig converts the document's YAML-friendly rule tree into
// filter.Rule, parsing each atom's string Value into the concrete type
// filter.Evaluate expects for its field (time fields parse as RFC3339,
// numeric fields as integers, between bounds as "lo,hi").
func ruleFromConfig(groups []FilterGroupConfig) (filter.Rule, error) {
	rule := make(filter.Rule, 0, len(groups))
	for _, g := range groups {
		group := make(filter.AndGroup, 0, len(g.Atoms))
		for _, a := range g.Atoms {
			atom, err := atomFromConfig(a)
			if err != nil {
				return nil, err
			}
			group = append(group, atom)
		}
		rule = append(rule, group)
	}
	return rule, nil
}

func atomFromConfig(a FilterAtomConfig) (filter.Atom, error) {
	field := filter.Field(a.Field)
	op := filter.Op(a.Op)

	atom := filter.Atom{Field: field, Op: op, Not: a.Negated}

	switch field {
	case filter.FieldTitle, filter.FieldTags:
		atom.Value = a.Value
	case filter.FieldPageCount:
		v, err := parseIntValue(op, a.Value)
		if err != nil {
			return filter.Atom{}, fmt.Errorf("config: rule atom %+v: %w", a, err)
		}
		atom.Value = v
	case filter.FieldFavTime, filter.FieldPubTime:
		v, err := parseTimeValue(op, a.Value)
		if err != nil {
			return filter.Atom{}, fmt.Errorf("config: rule atom %+v: %w", a, err)
		}
		atom.Value = v
	default:
		return filter.Atom{}, fmt.Errorf("config: unknown rule field %q", a.Field)
	}
	return atom, nil
}

func parseIntValue(op filter.Op, raw string) (any, error) {
	if op == filter.OpBetween {
		lo, hi, err := splitRange(raw)
		if err != nil {
			return nil, err
		}
		loN, err := strconv.ParseInt(lo, 10, 64)
		if err != nil {
			return nil, err
		}
		hiN, err := strconv.ParseInt(hi, 10, 64)
		if err != nil {
			return nil, err
		}
		return [2]int64{loN, hiN}, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func parseTimeValue(op filter.Op, raw string) (any, error) {
	if op == filter.OpBetween {
		lo, hi, err := splitRange(raw)
		if err != nil {
			return nil, err
		}
		loT, err := time.Parse(time.RFC3339, lo)
		if err != nil {
			return nil, err
		}
		hiT, err := time.Parse(time.RFC3339, hi)
		if err != nil {
			return nil, err
		}
		return [2]int64{loT.Unix(), hiT.Unix()}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return t.Unix(), nil
}

func splitRange(raw string) (string, string, error) {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("config: between value %q must be \"lo,hi\"", raw)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
