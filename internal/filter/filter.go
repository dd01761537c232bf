// Package filter decides which records are published.
//
// A filter is a boolean expr-lang expression evaluated against the record:
//
//	protocol in ["http", "https"] && host endsWith ".example.com"
//
// Available variables: src_ip, src_port, dst_ip, dst_port, bytes, protocol,
// host, referer. host and referer are empty strings when not observed.
package filter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/netgrok/netgrok/internal/record"
)

// Filter is a compiled filter expression. The zero value and nil accept
// every record.
type Filter struct {
	program *vm.Program
	source  string
}

// exprEnv defines the variable types for compile-time checking.
var exprEnv = map[string]interface{}{
	"src_ip":   "",
	"src_port": "",
	"dst_ip":   "",
	"dst_port": "",
	"bytes":    int64(0),
	"protocol": "",
	"host":     "",
	"referer":  "",
}

// Compile compiles source. An empty source yields a filter that accepts
// everything.
func Compile(source string) (*Filter, error) {
	if source == "" {
		return &Filter{}, nil
	}

	program, err := expr.Compile(source, expr.Env(exprEnv), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter expression: %w", err)
	}

	return &Filter{
		program: program,
		source:  source,
	}, nil
}

// Source returns the expression the filter was compiled from.
func (f *Filter) Source() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match reports whether rec passes the filter. An evaluation error rejects
// the record.
func (f *Filter) Match(rec record.Record) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}

	output, err := expr.Run(f.program, rec.Env())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter expression: %w", err)
	}

	ok, isBool := output.(bool)
	if !isBool {
		return false, fmt.Errorf("filter expression returned %T, want bool", output)
	}
	return ok, nil
}
