// internal/router/router.go

// Package router classifies an utterance into exactly one processing
// pipeline. Pure and synchronous; the rule order is load-bearing and part of
// the contract (a pending payload changes what a bare "log it" means, so the
// follow-up rule must run before the question rule).
package router

import (
	"regexp"

	"macro-pipeline/internal/models"
)

// Rule is one entry in the ordered, first-match-wins table.
type Rule struct {
	Target          models.RouteTarget
	Confidence      float64
	Reason          string
	RequiresPayload bool
	Patterns        []*regexp.Regexp
}

type Router struct {
	rules []Rule
}

// New builds a router over the given table; nil means the default table.
func New(rules []Rule) *Router {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Router{rules: rules}
}

// Route classifies the utterance. It cannot fail: the final default rule
// always matches.
func (r *Router) Route(utterance string, ctx models.SessionContext) models.RouteDecision {
	for _, rule := range r.rules {
		if rule.RequiresPayload && !ctx.HasUnconsumedPayload {
			continue
		}
		if len(rule.Patterns) > 0 && !anyMatch(rule.Patterns, utterance) {
			continue
		}
		return models.RouteDecision{
			Target:     rule.Target,
			Confidence: rule.Confidence,
			Reason:     rule.Reason,
		}
	}

	// Only reachable with a custom table that lacks a catch-all.
	return models.RouteDecision{
		Target:     models.TargetGeneral,
		Confidence: 0.7,
		Reason:     "default",
	}
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// DefaultRules is the built-in priority table.
func DefaultRules() []Rule {
	return []Rule{
		{
			// 1. "log it" style follow-ups only make sense with a pending
			// payload.
			Target:          models.TargetLogging,
			Confidence:      1.0,
			Reason:          "log_follow_up",
			RequiresPayload: true,
			Patterns: compile(
				`(?i)^\s*(log\s*it|log\s*all|log\s*that|log\s*this)\s*$`,
				`(?i)^\s*log\s+(the\s+)?[a-zA-Z0-9 ]+?\s*(only)?\s*$`,
				`(?i)^\s*log\s+.+\s+with\s+.+$`,
			),
		},
		{
			// 2. Informational macro/calorie questions.
			Target:     models.TargetQuestion,
			Confidence: 0.95,
			Reason:     "macro_question",
			Patterns: compile(
				`(?i)^\s*(tell|give|what\s+are)\s+(me\s+)?(the\s+)?macros?\b`,
				`(?i)^\s*(calories?|protein|carbs?|fat|macros?)\b.*\b(of|for)\b`,
				`(?i)\b(tell\s+me|what\s+are|what\s+is|how\s+many|give\s+me|show\s+me)\s+(the\s+)?(macros?|calories?|nutrition)\s+(of|for|in)\b`,
				`(?i)\b(macros?|calories?|nutrition)\s+(of|for|in)\s+`,
			),
		},
		{
			// 3. Direct meal statements.
			Target:     models.TargetLogging,
			Confidence: 0.9,
			Reason:     "meal_statement",
			Patterns: compile(
				`(?i)\b(log|save|add|record)\b.*\b(meal|food|breakfast|lunch|dinner|snack)\b`,
				`(?i)\b(i\s+ate|i\s+had|i\s+just\s+ate|i\s+just\s+had|i\s+consumed)\b`,
				`(?i)\bfor\s+(breakfast|lunch|dinner|snack)\b`,
			),
		},
		{
			// 4. Feedback / bug reports.
			Target:     models.TargetFeedback,
			Confidence: 0.85,
			Reason:     "feedback_keyword",
			Patterns: compile(
				`(?i)\b(feedback|bug|broken|crash|improve|suggestion|enhance|not\s+working)\b`,
			),
		},
		{
			// 5. Default: always matches.
			Target:     models.TargetGeneral,
			Confidence: 0.7,
			Reason:     "default",
		},
	}
}

func compile(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(expr)
	}
	return patterns
}
