// Package policy decides whether a tool call may run outright, must be
// denied, or requires explicit user authorization first.
package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode is the fallback applied when no pattern matches.
type Mode string

const (
	ModeAllow Mode = "allow"
	ModeDeny  Mode = "deny"
	ModeAsk   Mode = "ask"
)

// Rules configures the checker. Patterns are tool names with optional
// "*" wildcards ("write_*"). Deny wins over Ask wins over Allow.
type Rules struct {
	Deny  []string `json:"deny,omitempty"`
	Ask   []string `json:"ask,omitempty"`
	Allow []string `json:"allow,omitempty"`
	// DefaultMode applies when no pattern matches; empty means allow.
	DefaultMode Mode `json:"default_mode,omitempty"`
}

// Result is the outcome of a policy check.
type Result struct {
	// Allowed is false only for hard denials; gated calls are allowed
	// pending authorization.
	Allowed bool
	// Gated means the call needs a user decision before executing.
	Gated  bool
	Reason string
}

// Checker evaluates tool calls against a rule set.
type Checker struct {
	rules Rules
}

// NewChecker creates a checker for the given rules.
func NewChecker(rules Rules) *Checker {
	return &Checker{rules: rules}
}

// DefaultRules gates the tools with side effects and allows the rest.
func DefaultRules() Rules {
	return Rules{
		Ask:         []string{"write_file", "run_command"},
		DefaultMode: ModeAllow,
	}
}

// Check classifies one tool call.
func (c *Checker) Check(toolName string) Result {
	for _, pattern := range c.rules.Deny {
		if matchPattern(toolName, pattern) {
			return Result{Allowed: false, Reason: fmt.Sprintf("tool matches deny pattern: %s", pattern)}
		}
	}
	for _, pattern := range c.rules.Ask {
		if matchPattern(toolName, pattern) {
			return Result{Allowed: true, Gated: true, Reason: fmt.Sprintf("tool matches ask pattern: %s", pattern)}
		}
	}
	for _, pattern := range c.rules.Allow {
		if matchPattern(toolName, pattern) {
			return Result{Allowed: true}
		}
	}

	switch c.rules.DefaultMode {
	case ModeDeny:
		return Result{Allowed: false, Reason: "tool not in allow list and default mode is deny"}
	case ModeAsk:
		return Result{Allowed: true, Gated: true, Reason: "default mode is ask"}
	default:
		return Result{Allowed: true}
	}
}

// matchPattern compares a tool name against a pattern where "*" matches
// any run of characters.
func matchPattern(name, pattern string) bool {
	if pattern == "*" || pattern == name {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false
	}
	return re.MatchString(name)
}
