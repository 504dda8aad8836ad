package model

import "time"

// ConditionOperator compares a transaction field against a rule value.
type ConditionOperator string

// Condition operator constants. String comparisons are case-insensitive;
// between is inclusive on both bounds.
const (
	OpEquals      ConditionOperator = "equals"
	OpContains    ConditionOperator = "contains"
	OpStartsWith  ConditionOperator = "starts_with"
	OpEndsWith    ConditionOperator = "ends_with"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpBetween     ConditionOperator = "between"
)

// ConditionField names the transaction field a condition inspects.
type ConditionField string

// Condition field constants.
const (
	FieldDescription ConditionField = "description"
	FieldMerchant    ConditionField = "merchant"
	FieldAmount      ConditionField = "amount"
	FieldAccount     ConditionField = "account"
	FieldCategory    ConditionField = "category"
)

// ActionType names the mutation a matching rule performs.
type ActionType string

// Action type constants.
const (
	ActionSetCategory       ActionType = "set_category"
	ActionSetSubcategory    ActionType = "set_subcategory"
	ActionAddTag            ActionType = "add_tag"
	ActionSetMerchant       ActionType = "set_merchant"
	ActionExcludeFromBudget ActionType = "exclude_from_budget"
	ActionMarkAsTransfer    ActionType = "mark_as_transfer"
)

// RuleCondition is a single predicate over a transaction field. Value2 is
// only used by range operators.
type RuleCondition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
	Value2   string            `json:"value2,omitempty"`
}

// RuleAction is a single mutation applied when a rule matches.
type RuleAction struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value,omitempty"`
}

// TransactionRule is a user-defined condition/action rule. A rule matches a
// transaction only when all of its conditions hold; its actions are then
// applied in list order. Rules run in ascending priority order.
type TransactionRule struct {
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ID          string          `json:"id"`
	HouseholdID string          `json:"household_id"`
	Name        string          `json:"name"`
	Conditions  []RuleCondition `json:"conditions"`
	Actions     []RuleAction    `json:"actions"`
	Priority    int             `json:"priority"`
	IsActive    bool            `json:"is_active"`
}
