package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearthledger/hearthledger/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage transaction rules",
	}

	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesDeleteCmd())

	return cmd
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a rule and re-evaluate existing transactions",
		Long: `Create a condition/action rule. Conditions and actions are JSON arrays.

Example:
  hearthledger rules add --household fam1 --name "Amazon is shopping" \
    --conditions '[{"field":"merchant","operator":"contains","value":"amazon"}]' \
    --actions '[{"type":"set_category","value":"shopping"}]'`,
		RunE: runRulesAdd,
	}

	cmd.Flags().String("household", "", "household id")
	cmd.Flags().String("name", "", "rule name")
	cmd.Flags().String("conditions", "", "JSON array of conditions")
	cmd.Flags().String("actions", "", "JSON array of actions")
	cmd.Flags().Int("priority", 100, "evaluation priority, lower runs first")
	_ = cmd.MarkFlagRequired("household")
	_ = cmd.MarkFlagRequired("conditions")
	_ = cmd.MarkFlagRequired("actions")

	return cmd
}

func runRulesAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	householdID, _ := cmd.Flags().GetString("household")
	name, _ := cmd.Flags().GetString("name")
	conditionsJSON, _ := cmd.Flags().GetString("conditions")
	actionsJSON, _ := cmd.Flags().GetString("actions")
	priority, _ := cmd.Flags().GetInt("priority")

	var conditions []model.RuleCondition
	if err := json.Unmarshal([]byte(conditionsJSON), &conditions); err != nil {
		return fmt.Errorf("invalid conditions: %w", err)
	}
	var actions []model.RuleAction
	if err := json.Unmarshal([]byte(actionsJSON), &actions); err != nil {
		return fmt.Errorf("invalid actions: %w", err)
	}

	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = eng.Close() }()

	rule, err := eng.CreateRule(ctx, &model.TransactionRule{
		HouseholdID: householdID,
		Name:        name,
		Conditions:  conditions,
		Actions:     actions,
		Priority:    priority,
		IsActive:    true,
	})
	if err != nil {
		return err
	}

	// Let the historical re-evaluation finish before the process exits.
	eng.WaitForBackground()

	cmd.Printf("Created rule %s\n", rule.ID)
	return nil
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules for a household",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			householdID, _ := cmd.Flags().GetString("household")

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			defer func() { _ = eng.Close() }()

			ruleSet, err := eng.ListRules(ctx, householdID)
			if err != nil {
				return err
			}

			for _, rule := range ruleSet {
				state := "active"
				if !rule.IsActive {
					state = "inactive"
				}
				cmd.Printf("%s  p%-4d %-8s %s (%d conditions, %d actions)\n",
					rule.ID, rule.Priority, state, rule.Name,
					len(rule.Conditions), len(rule.Actions))
			}
			return nil
		},
	}

	cmd.Flags().String("household", "", "household id")
	_ = cmd.MarkFlagRequired("household")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [rule-id]",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			householdID, _ := cmd.Flags().GetString("household")

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			defer func() { _ = eng.Close() }()

			if err := eng.DeleteRule(ctx, householdID, args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted rule %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().String("household", "", "household id")
	_ = cmd.MarkFlagRequired("household")
	return cmd
}
