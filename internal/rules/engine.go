// Package rules evaluates user-defined condition/action rules against
// transactions.
package rules

import (
	"sort"
	"strconv"
	"strings"

	"github.com/hearthledger/hearthledger/internal/model"
)

// Engine applies transaction rules. It holds no state; rules are passed in
// per call so every invocation sees a consistent rule set.
type Engine struct{}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply runs every active rule against the transaction in ascending
// priority order, mutating it in place. It returns true if any rule
// changed the transaction. Applying the same rule set twice yields the
// same result: all actions are idempotent.
func (e *Engine) Apply(txn *model.Transaction, ruleSet []model.TransactionRule) bool {
	ordered := make([]model.TransactionRule, len(ruleSet))
	copy(ordered, ruleSet)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	changed := false
	for i := range ordered {
		rule := &ordered[i]
		if !rule.IsActive {
			continue
		}
		if !matches(txn, rule) {
			continue
		}
		for _, action := range rule.Actions {
			if applyAction(txn, action) {
				changed = true
			}
		}
	}
	return changed
}

// matches reports whether every condition of the rule holds. A rule with no
// conditions never matches.
func matches(txn *model.Transaction, rule *model.TransactionRule) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		if !evaluate(txn, cond) {
			return false
		}
	}
	return true
}

// evaluate checks a single condition. Unknown fields or operators evaluate
// false so forward-incompatible rule definitions degrade to no-ops instead
// of faulting the engine.
func evaluate(txn *model.Transaction, cond model.RuleCondition) bool {
	switch cond.Operator {
	case model.OpEquals, model.OpContains, model.OpStartsWith, model.OpEndsWith:
		fieldValue, ok := stringField(txn, cond.Field)
		if !ok {
			return false
		}
		return evaluateString(fieldValue, cond)
	case model.OpGreaterThan, model.OpLessThan, model.OpBetween:
		fieldValue, ok := numericField(txn, cond.Field)
		if !ok {
			return false
		}
		return evaluateNumeric(fieldValue, cond)
	}
	return false
}

func stringField(txn *model.Transaction, field model.ConditionField) (string, bool) {
	switch field {
	case model.FieldDescription:
		return txn.Description, true
	case model.FieldMerchant:
		return txn.MerchantName, true
	case model.FieldAccount:
		return txn.AccountID, true
	case model.FieldCategory:
		return string(txn.Category), true
	}
	return "", false
}

func numericField(txn *model.Transaction, field model.ConditionField) (float64, bool) {
	if field == model.FieldAmount {
		return txn.Amount, true
	}
	return 0, false
}

func evaluateString(fieldValue string, cond model.RuleCondition) bool {
	have := strings.ToLower(fieldValue)
	want := strings.ToLower(cond.Value)

	switch cond.Operator {
	case model.OpEquals:
		return have == want
	case model.OpContains:
		return strings.Contains(have, want)
	case model.OpStartsWith:
		return strings.HasPrefix(have, want)
	case model.OpEndsWith:
		return strings.HasSuffix(have, want)
	}
	return false
}

func evaluateNumeric(fieldValue float64, cond model.RuleCondition) bool {
	value, err := strconv.ParseFloat(cond.Value, 64)
	if err != nil {
		return false
	}

	switch cond.Operator {
	case model.OpGreaterThan:
		return fieldValue > value
	case model.OpLessThan:
		return fieldValue < value
	case model.OpBetween:
		value2, err := strconv.ParseFloat(cond.Value2, 64)
		if err != nil {
			return false
		}
		return fieldValue >= value && fieldValue <= value2
	}
	return false
}

// applyAction executes one action against the transaction and reports
// whether it changed anything. Unknown action types are ignored.
func applyAction(txn *model.Transaction, action model.RuleAction) bool {
	switch action.Type {
	case model.ActionSetCategory:
		category := model.Category(strings.ToLower(action.Value))
		if !category.Valid() || txn.Category == category {
			return false
		}
		txn.Category = category
		return true

	case model.ActionSetSubcategory:
		if txn.Subcategory == action.Value {
			return false
		}
		txn.Subcategory = action.Value
		return true

	case model.ActionAddTag:
		if action.Value == "" || txn.HasTag(action.Value) {
			return false
		}
		txn.AddTag(action.Value)
		return true

	case model.ActionSetMerchant:
		if action.Value == "" || txn.MerchantName == action.Value {
			return false
		}
		txn.MerchantName = action.Value
		return true

	case model.ActionExcludeFromBudget:
		exclude := parseBoolValue(action.Value)
		if txn.ExcludeFromBudget == exclude {
			return false
		}
		txn.ExcludeFromBudget = exclude
		return true

	case model.ActionMarkAsTransfer:
		mark := parseBoolValue(action.Value)
		changed := false
		if txn.IsTransfer != mark {
			txn.IsTransfer = mark
			changed = true
		}
		if mark && txn.Category != model.CategoryTransfers {
			txn.Category = model.CategoryTransfers
			changed = true
		}
		return changed
	}
	return false
}

// parseBoolValue treats an empty action value as true so the common
// shorthand {type: exclude_from_budget} works without a value.
func parseBoolValue(value string) bool {
	if value == "" {
		return true
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return true
	}
	return parsed
}
