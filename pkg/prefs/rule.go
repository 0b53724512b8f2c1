package prefs

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// rule is a compiled validation expression evaluated with `value` bound to
// the candidate value.
type rule struct {
	source  string
	program *vm.Program
}

func compileRule(source string, sample any) (*rule, error) {
	program, err := expr.Compile(source,
		expr.Env(map[string]any{"value": ruleValue(sample)}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling rule %q: %w", ErrInvalidArgument, source, err)
	}
	return &rule{source: source, program: program}, nil
}

func (r *rule) check(v any) error {
	out, err := expr.Run(r.program, map[string]any{"value": ruleValue(v)})
	if err != nil {
		return fmt.Errorf("%w: evaluating rule %q: %w", ErrInvalidArgument, r.source, err)
	}
	if ok, _ := out.(bool); !ok {
		return fmt.Errorf("%w: value %v rejected by rule %q", ErrInvalidArgument, v, r.source)
	}
	return nil
}

// ruleValue strips named primitive types down to their basic type so rules
// can compare them against literals.
func ruleValue(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int32:
		return int32(rv.Int())
	case reflect.Int64:
		return rv.Int()
	case reflect.Float32:
		return float32(rv.Float())
	default:
		return v
	}
}
