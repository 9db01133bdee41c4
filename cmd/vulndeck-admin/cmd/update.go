package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update resources",
}

var updateFindingsCmd = &cobra.Command{
	Use:     "findings ID...",
	Aliases: []string{"finding"},
	Short:   "Bulk edit status flags on one or more findings",
	Long: `Bulk edit status flags on one or more findings.

Each flag that is set is applied to every selected finding; unset flags
are left untouched. A justification note is required. Findings that fail
are reported individually and do not stop the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdateFindings,
}

func init() {
	updateFindingsCmd.Flags().String("actor", "", "Acting user ID (required)")
	updateFindingsCmd.Flags().String("note", "", "Justification note (required)")
	updateFindingsCmd.Flags().String("active", "", "Set active flag (true/false)")
	updateFindingsCmd.Flags().String("verified", "", "Set verified flag (true/false)")
	updateFindingsCmd.Flags().String("false-positive", "", "Set false positive flag (true/false)")
	updateFindingsCmd.Flags().String("out-of-scope", "", "Set out of scope flag (true/false)")
	updateFindingsCmd.Flags().String("mitigated", "", "Set mitigated flag (true/false)")
	_ = updateFindingsCmd.MarkFlagRequired("actor")
	_ = updateFindingsCmd.MarkFlagRequired("note")

	updateCmd.AddCommand(updateFindingsCmd)
}

func runUpdateFindings(cmd *cobra.Command, args []string) error {
	client := mustClient()

	actor, _ := cmd.Flags().GetString("actor")
	note, _ := cmd.Flags().GetString("note")

	body := map[string]any{
		"finding_ids": args,
		"actor_id":    actor,
		"note":        note,
	}

	set := false
	for flag, field := range map[string]string{
		"active":         "active",
		"verified":       "verified",
		"false-positive": "false_positive",
		"out-of-scope":   "out_of_scope",
		"mitigated":      "mitigated",
	} {
		v, _ := cmd.Flags().GetString(flag)
		switch v {
		case "":
		case "true":
			body[field] = true
			set = true
		case "false":
			body[field] = false
			set = true
		default:
			return fmt.Errorf("--%s must be true or false, got %q", flag, v)
		}
	}
	if !set {
		return fmt.Errorf("at least one status flag must be set")
	}

	data, _, err := client.Do("POST", "/api/v1/findings/bulk", body)
	if err != nil {
		return err
	}

	var resp BulkEditResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	if flagOutput == outputJSON {
		printJSON(resp)
		return nil
	}

	fmt.Printf("Updated %d finding(s), %d failed.\n", resp.Succeeded, resp.Failed)
	for id, msg := range resp.Errors {
		fmt.Printf("  %s: %s\n", id, msg)
	}
	if resp.Failed > 0 {
		return fmt.Errorf("%d finding(s) failed", resp.Failed)
	}
	return nil
}
