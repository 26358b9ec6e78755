package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/pkg/expression"
)

// RuleEvaluator runs entity composite rules through the expression engine
type RuleEvaluator struct {
	engine *expression.Engine
	logger *zap.Logger
}

// NewRuleEvaluator creates an evaluator over the given engine
func NewRuleEvaluator(engine *expression.Engine, logger *zap.Logger) *RuleEvaluator {
	if engine == nil {
		engine = expression.NewEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleEvaluator{engine: engine, logger: logger}
}

// Check compiles every rule of every entity so broken conditions fail at startup
func (r *RuleEvaluator) Check(catalog *EntityCatalog) error {
	for _, name := range catalog.Names() {
		def, _ := catalog.Get(name)
		for _, rule := range def.Rules {
			if rule.Key == "" || rule.Message == "" {
				return fmt.Errorf("entity %q has a rule without key or message", name)
			}
			if err := r.engine.Validate(rule.Condition); err != nil {
				return fmt.Errorf("entity %q rule %q: %w", name, rule.Key, err)
			}
		}
	}
	return nil
}

// RuleViolation is one failed composite rule
type RuleViolation struct {
	Key     string
	Message string
}

// Evaluate returns the violations in rule order. The first violation per key wins.
// A rule that fails to evaluate is logged and skipped.
func (r *RuleEvaluator) Evaluate(rules []CompositeRule, env map[string]interface{}) []RuleViolation {
	var out []RuleViolation
	seen := make(map[string]bool)
	for _, rule := range rules {
		if seen[rule.Key] {
			continue
		}
		violated, err := r.engine.EvaluateBool(rule.Condition, env)
		if err != nil {
			r.logger.Warn("composite rule evaluation failed",
				zap.String("rule", rule.Key),
				zap.Error(err))
			continue
		}
		if violated {
			seen[rule.Key] = true
			out = append(out, RuleViolation{Key: rule.Key, Message: rule.Message})
		}
	}
	return out
}
