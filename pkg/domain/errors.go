package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRecursionLimitExceeded is matched by RecursionLimitError.
var ErrRecursionLimitExceeded = errors.New("recursion limit exceeded")

// ErrInvalidRuleBase is matched by InvalidRuleBaseError.
var ErrInvalidRuleBase = errors.New("invalid rule base")

// ErrNodeNotFound is returned when a node id does not belong to the tree.
var ErrNodeNotFound = errors.New("node not found")

// RecursionLimitError reports an action graph that recursed past the engine's depth bound.
type RecursionLimitError struct {
	Node  NodeID
	Rule  string
	Limit int
}

func (e *RecursionLimitError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("recursion limit %d exceeded at node %d", e.Limit, e.Node)
	}
	return fmt.Sprintf("recursion limit %d exceeded at node %d (rule %q)", e.Limit, e.Node, e.Rule)
}

func (e *RecursionLimitError) Is(target error) bool {
	return target == ErrRecursionLimitExceeded
}

// RuleError describes a single malformed rule.
type RuleError struct {
	Rule   string // Rule name, may be empty when the name itself is missing
	Index  int    // Position in the load batch
	Reason string
}

func (e *RuleError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("rule #%d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("rule %q (#%d): %s", e.Rule, e.Index, e.Reason)
}

// InvalidRuleBaseError aggregates every problem found while validating a load batch.
type InvalidRuleBaseError struct {
	Errors []error
}

func (e *InvalidRuleBaseError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid rule base: " + e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid rule base: %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

func (e *InvalidRuleBaseError) Is(target error) bool {
	return target == ErrInvalidRuleBase
}

func (e *InvalidRuleBaseError) Unwrap() []error {
	return e.Errors
}

// RuleErrors returns the individual failures if err is an InvalidRuleBaseError.
// Otherwise returns nil.
func RuleErrors(err error) []error {
	var invalid *InvalidRuleBaseError
	if errors.As(err, &invalid) {
		return invalid.Errors
	}
	return nil
}
