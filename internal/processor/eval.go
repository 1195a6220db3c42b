package processor

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var identPattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)

var operatorReplacer = strings.NewReplacer("^", "**", "×", "*", "÷", "/", "−", "-")

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

var functions = map[string]func(args ...float64) (float64, error){
	"max": func(args ...float64) (float64, error) {
		if len(args) == 0 {
			return 0, errors.New("max needs at least one argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			m = math.Max(m, a)
		}
		return m, nil
	},
	"min": func(args ...float64) (float64, error) {
		if len(args) == 0 {
			return 0, errors.New("min needs at least one argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			m = math.Min(m, a)
		}
		return m, nil
	},
	"abs": unary(math.Abs),
	"round": func(args ...float64) (float64, error) {
		switch len(args) {
		case 1:
			return math.RoundToEven(args[0]), nil
		case 2:
			p := math.Pow(10, math.Trunc(args[1]))
			return math.RoundToEven(args[0]*p) / p, nil
		default:
			return 0, errors.New("round takes one or two arguments")
		}
	},
	"sqrt": unary(math.Sqrt),
	"exp":  unary(math.Exp),
	"log":  unary(math.Log),
	"sin":  unary(math.Sin),
	"cos":  unary(math.Cos),
	"tan":  unary(math.Tan),
}

func unary(fn func(float64) float64) func(args ...float64) (float64, error) {
	return func(args ...float64) (float64, error) {
		if len(args) != 1 {
			return 0, errors.New("expected one argument")
		}
		return fn(args[0]), nil
	}
}

// Evaluator compiles formula expressions against a numeric row context.
// Compiled programs are cached by rewritten source. Not safe for concurrent use.
type Evaluator struct {
	options []expr.Option
	cache   map[string]*vm.Program
}

// NewEvaluator returns an evaluator exposing max, min, abs, round, sqrt,
// exp, log, sin, cos, tan and the constants pi and e.
func NewEvaluator() *Evaluator {
	opts := []expr.Option{expr.DisableAllBuiltins()}
	for name, fn := range functions {
		fn := fn
		opts = append(opts, expr.Function(name, func(params ...any) (any, error) {
			args := make([]float64, len(params))
			for i, p := range params {
				f, err := toFloat(p)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				args[i] = f
			}
			return fn(args...)
		}))
	}
	return &Evaluator{options: opts, cache: make(map[string]*vm.Program)}
}

// Rewrite turns a formula into an expr program source for the given context
// keys. Only the right-hand side of "LHS = RHS" is kept, operators are
// normalised, identifiers are lower-cased and unknown identifiers become 0.
func Rewrite(expression string, context map[string]float64) string {
	src := operatorReplacer.Replace(strings.TrimSpace(rhs(expression)))
	locs := identPattern.FindAllStringIndex(src, -1)
	if len(locs) == 0 {
		return src
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(src[last:loc[0]])
		name := strings.ToLower(src[loc[0]:loc[1]])
		switch {
		case isCall(src, loc[1]) && functions[name] != nil:
			b.WriteString(name)
		case hasKey(context, name):
			b.WriteString(name)
		case constants[name] != 0:
			b.WriteString(name)
		default:
			b.WriteString("0")
		}
		last = loc[1]
	}
	b.WriteString(src[last:])
	return b.String()
}

// Eval evaluates expression against context. Non-numeric, NaN and infinite
// results are errors.
func (e *Evaluator) Eval(expression string, context map[string]float64) (float64, error) {
	src := Rewrite(expression, context)
	if strings.TrimSpace(src) == "" {
		return 0, errors.New("empty expression")
	}

	env := make(map[string]any, len(context)+len(constants))
	for k, v := range constants {
		env[k] = v
	}
	for k, v := range context {
		env[k] = v
	}

	program, ok := e.cache[src]
	if !ok {
		var err error
		program, err = expr.Compile(src, append([]expr.Option{expr.Env(env)}, e.options...)...)
		if err != nil {
			return 0, fmt.Errorf("compile %q: %w", src, err)
		}
		e.cache[src] = program
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", src, err)
	}
	result, err := toFloat(out)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", src, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("evaluate %q: result is not finite", src)
	}
	return result, nil
}

func rhs(expression string) string {
	idx := -1
	for i := 0; i < len(expression); i++ {
		if expression[i] != '=' {
			continue
		}
		prevOp := i > 0 && strings.ContainsRune("=!<>", rune(expression[i-1]))
		nextEq := i+1 < len(expression) && expression[i+1] == '='
		if prevOp || nextEq {
			if nextEq {
				i++
			}
			continue
		}
		if idx >= 0 {
			return expression
		}
		idx = i
	}
	if idx < 0 {
		return expression
	}
	return expression[idx+1:]
}

func isCall(src string, end int) bool {
	rest := strings.TrimLeft(src[end:], " \t")
	return strings.HasPrefix(rest, "(")
}

func hasKey(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("non-numeric value %v (%T)", v, v)
	}
}
