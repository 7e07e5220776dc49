package realtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"

	"dealstream/pkg/model"
)

var celEnv *cel.Env

func init() {
	celEnv, _ = cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
		// Decoded JSON numbers are float64; filter literals may be ints.
		cel.CrossTypeNumericComparisons(true),
	)
}

// compileRowFilter compiles a row filter like "user_id=eq.42" into a
// CEL program evaluated against decoded records before dispatch. The
// server applies the same filter; the local pass keeps a misbehaving or
// stale channel from leaking rows across subscribers.
func compileRowFilter(filter string) (cel.Program, error) {
	if filter == "" {
		return nil, nil
	}
	expr, err := filterToExpression(filter)
	if err != nil {
		return nil, err
	}
	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, model.Validationf("row filter %q: %v", filter, issues.Err())
	}
	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, model.Internalf("row filter %q: %v", filter, err)
	}
	return prg, nil
}

func filterToExpression(filter string) (string, error) {
	column, rest, ok := strings.Cut(filter, "=")
	if !ok || column == "" {
		return "", model.Validationf("row filter %q must be column=op.value", filter)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		return "", model.Validationf("row filter %q must be column=op.value", filter)
	}

	field := fmt.Sprintf("record['%s']", column)
	literal := formatFilterValue(value)

	switch model.FilterOp(op) {
	case model.OpEq:
		return fmt.Sprintf("%s == %s", field, literal), nil
	case model.OpNeq:
		return fmt.Sprintf("%s != %s", field, literal), nil
	case model.OpGt:
		return fmt.Sprintf("%s > %s", field, literal), nil
	case model.OpGte:
		return fmt.Sprintf("%s >= %s", field, literal), nil
	case model.OpLt:
		return fmt.Sprintf("%s < %s", field, literal), nil
	case model.OpLte:
		return fmt.Sprintf("%s <= %s", field, literal), nil
	default:
		return "", model.Validationf("unsupported row filter operator %q", op)
	}
}

func formatFilterValue(value string) string {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return value
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return value
	}
	if value == "true" || value == "false" {
		return value
	}
	return fmt.Sprintf("'%s'", strings.ReplaceAll(value, "'", "\\'"))
}

// filterMatches evaluates the compiled filter against a record. A nil
// program matches everything; an evaluation error drops the event for
// that subscriber rather than leaking an unverified row.
func filterMatches(prg cel.Program, record map[string]any) bool {
	if prg == nil {
		return true
	}
	if record == nil {
		return false
	}
	out, _, err := prg.Eval(map[string]any{"record": record})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
