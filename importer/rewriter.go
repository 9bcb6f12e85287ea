package importer

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
)

// RewriterEnv exposes the decomposed CPE 2.3 name to rewrite rules.
type RewriterEnv struct {
	Vendor  string `expr:"vendor"`
	Product string `expr:"product"`
	Version string `expr:"version"`
	Name    string `expr:"name"`
}

type compiledRewriter struct {
	Predicate   *vm.Program
	RewriteRule *vm.Program
	Field       string
}

func NewCompiledRewriter(r vulnsync.Rewriter) (cr compiledRewriter, err error) {
	genericOpts := []expr.Option{
		expr.Env(RewriterEnv{}),
		expr.Function(
			"fmt",
			exprFmt,
			new(func(string, string) string),
			new(func([]any, string) string),
		),
	}

	if r.Field != "" {
		cr.Field = r.Field
	} else {
		cr.Field = "product"
	}

	predicateOpts := append(genericOpts,
		expr.AsBool(),
	)
	cr.Predicate, err = expr.Compile(r.Predicate, predicateOpts...)
	if err != nil {
		return cr, fmt.Errorf("error compiling predicate: %w", err)
	}

	rewriterOpts := append(genericOpts,
		expr.AsKind(reflect.String),
	)
	cr.RewriteRule, err = expr.Compile(r.RewriteRule, rewriterOpts...)
	if err != nil {
		return cr, fmt.Errorf("error compiling rewrite rule: %w", err)
	}

	return cr, err
}

func compileRewriters(rules []vulnsync.Rewriter) ([]compiledRewriter, error) {
	rewriters := make([]compiledRewriter, 0, len(rules))
	for i, rule := range rules {
		cr, err := NewCompiledRewriter(rule)
		if err != nil {
			return nil, fmt.Errorf("could not parse rewrite rule %d: %w", i+1, err)
		}
		rewriters = append(rewriters, cr)
	}
	return rewriters, nil
}

// Rewrite applies the rule to a full CPE 2.3 name. Names that do not
// decompose into the 13 standard components pass through untouched.
func (c compiledRewriter) Rewrite(name string) string {
	parts := strings.Split(name, ":")
	if len(parts) < 13 {
		return name
	}

	env := RewriterEnv{
		Vendor:  parts[3],
		Product: parts[4],
		Version: parts[5],
		Name:    name,
	}
	predicate, _ := expr.Run(c.Predicate, env)
	matched, ok := predicate.(bool)
	if !ok || !matched {
		return name
	}
	result, _ := expr.Run(c.RewriteRule, env)
	resultStr, ok := result.(string)
	if !ok {
		return name
	}
	switch c.Field {
	case "product":
		parts[4] = resultStr
	case "vendor":
		parts[3] = resultStr
	case "version":
		parts[5] = resultStr
	}

	return strings.Join(parts, ":")
}

// exprFmt is an implementation of sprintf for expr. It takes the thing to
// be formatted as the first argument to make it possible to use with pipes.
// The first argument can either be a string, or a list of any value.
func exprFmt(params ...any) (any, error) {
	switch arg1 := params[0].(type) {
	case string:
		return fmt.Sprintf(params[1].(string), arg1), nil
	case []any:
		return fmt.Sprintf(params[1].(string), arg1...), nil
	default:
		return "", fmt.Errorf("unsupported type for argument 1: %T", arg1)
	}
}
