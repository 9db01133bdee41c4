package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Lifecycle and template operations.

var findingCmd = &cobra.Command{
	Use:   "finding",
	Short: "Drive finding lifecycle transitions",
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Apply templates to findings",
}

func init() {
	for _, op := range []struct {
		use, short, path string
	}{
		{"close ID", "Close (mitigate) a finding", "close"},
		{"reopen ID", "Reopen a mitigated finding", "reopen"},
		{"accept-risk ID", "Accept the finding's risk", "accept-risk"},
		{"unaccept-risk ID", "Withdraw risk acceptance", "unaccept-risk"},
	} {
		op := op
		c := &cobra.Command{
			Use:   op.use,
			Short: op.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTransition(cmd, args[0], op.path)
			},
		}
		c.Flags().String("actor", "", "Acting user ID (required)")
		c.Flags().String("note", "", "Justification note (required)")
		_ = c.MarkFlagRequired("actor")
		_ = c.MarkFlagRequired("note")
		findingCmd.AddCommand(c)
	}

	reviewCmd := &cobra.Command{
		Use:   "review ID",
		Short: "Request peer review of a finding",
		Args:  cobra.ExactArgs(1),
		RunE:  runReview,
	}
	reviewCmd.Flags().String("actor", "", "Acting user ID (required)")
	reviewCmd.Flags().String("note", "", "Question for the reviewers (required)")
	reviewCmd.Flags().StringSlice("reviewer", nil, "Reviewer user ID, repeatable (required)")
	_ = reviewCmd.MarkFlagRequired("actor")
	_ = reviewCmd.MarkFlagRequired("note")
	_ = reviewCmd.MarkFlagRequired("reviewer")
	findingCmd.AddCommand(reviewCmd)

	clearReviewCmd := &cobra.Command{
		Use:   "clear-review ID",
		Short: "Conclude a peer review with a verdict",
		Args:  cobra.ExactArgs(1),
		RunE:  runClearReview,
	}
	clearReviewCmd.Flags().String("actor", "", "Reviewing user ID (required)")
	clearReviewCmd.Flags().String("note", "", "Review verdict note (required)")
	clearReviewCmd.Flags().Bool("active", false, "Leave the finding active")
	clearReviewCmd.Flags().Bool("verified", false, "Mark the finding verified")
	_ = clearReviewCmd.MarkFlagRequired("actor")
	_ = clearReviewCmd.MarkFlagRequired("note")
	findingCmd.AddCommand(clearReviewCmd)

	noteCmd := &cobra.Command{
		Use:   "note ID",
		Short: "Add a note to a finding",
		Args:  cobra.ExactArgs(1),
		RunE:  runAddNote,
	}
	noteCmd.Flags().String("actor", "", "Acting user ID (required)")
	noteCmd.Flags().String("entry", "", "Note text (required)")
	_ = noteCmd.MarkFlagRequired("actor")
	_ = noteCmd.MarkFlagRequired("entry")
	findingCmd.AddCommand(noteCmd)

	cvssCmd := &cobra.Command{
		Use:   "set-cvss ID",
		Short: "Set a finding's CVSS vector and derived score",
		Args:  cobra.ExactArgs(1),
		RunE:  runSetCVSS,
	}
	cvssCmd.Flags().String("vector", "", "CVSS v3.0, v3.1 or v4.0 vector (required)")
	_ = cvssCmd.MarkFlagRequired("vector")
	findingCmd.AddCommand(cvssCmd)

	clearCVSSCmd := &cobra.Command{
		Use:   "clear-cvss ID",
		Short: "Clear a finding's CVSS vector and score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := mustClient()
			if err := client.Delete("/api/v1/findings/" + args[0] + "/cvss"); err != nil {
				return err
			}
			fmt.Println("CVSS cleared.")
			return nil
		},
	}
	findingCmd.AddCommand(clearCVSSCmd)

	applyCmd := &cobra.Command{
		Use:   "apply TEMPLATE-ID",
		Short: "Apply a template's descriptive fields to a finding",
		Args:  cobra.ExactArgs(1),
		RunE:  runApplyTemplate,
	}
	applyCmd.Flags().String("finding", "", "Target finding ID (required)")
	applyCmd.Flags().String("mode", "", "Apply mode: replace or merge (default merge)")
	_ = applyCmd.MarkFlagRequired("finding")
	templateCmd.AddCommand(applyCmd)
}

func runTransition(cmd *cobra.Command, id, op string) error {
	client := mustClient()

	actor, _ := cmd.Flags().GetString("actor")
	note, _ := cmd.Flags().GetString("note")

	data, err := client.Post("/api/v1/findings/"+id+"/"+op, map[string]any{
		"actor_id": actor,
		"note":     note,
	})
	if err != nil {
		return err
	}
	return printTransitionResult(data)
}

func runReview(cmd *cobra.Command, args []string) error {
	client := mustClient()

	actor, _ := cmd.Flags().GetString("actor")
	note, _ := cmd.Flags().GetString("note")
	reviewers, _ := cmd.Flags().GetStringSlice("reviewer")

	data, err := client.Post("/api/v1/findings/"+args[0]+"/review", map[string]any{
		"actor_id":  actor,
		"note":      note,
		"reviewers": reviewers,
	})
	if err != nil {
		return err
	}
	return printTransitionResult(data)
}

func runClearReview(cmd *cobra.Command, args []string) error {
	client := mustClient()

	actor, _ := cmd.Flags().GetString("actor")
	note, _ := cmd.Flags().GetString("note")
	active, _ := cmd.Flags().GetBool("active")
	verified, _ := cmd.Flags().GetBool("verified")

	data, err := client.Post("/api/v1/findings/"+args[0]+"/clear-review", map[string]any{
		"actor_id": actor,
		"note":     note,
		"active":   active,
		"verified": verified,
	})
	if err != nil {
		return err
	}
	return printTransitionResult(data)
}

func runAddNote(cmd *cobra.Command, args []string) error {
	client := mustClient()

	actor, _ := cmd.Flags().GetString("actor")
	entry, _ := cmd.Flags().GetString("entry")

	data, err := client.Post("/api/v1/findings/"+args[0]+"/notes", map[string]any{
		"actor_id": actor,
		"entry":    entry,
	})
	if err != nil {
		return err
	}
	return printTransitionResult(data)
}

func runSetCVSS(cmd *cobra.Command, args []string) error {
	client := mustClient()

	vector, _ := cmd.Flags().GetString("vector")
	data, err := client.Put("/api/v1/findings/"+args[0]+"/cvss", map[string]any{
		"vector": vector,
	})
	if err != nil {
		return err
	}

	var f FindingResponse
	if err := unmarshal(data, &f); err != nil {
		return err
	}
	if flagOutput == outputJSON {
		printJSON(f)
		return nil
	}
	fmt.Printf("CVSS set: %s (score %s, severity %s)\n", f.CVSSVector, cvssStr(f.CVSSScore), f.Severity)
	return nil
}

func runApplyTemplate(cmd *cobra.Command, args []string) error {
	client := mustClient()

	findingID, _ := cmd.Flags().GetString("finding")
	mode, _ := cmd.Flags().GetString("mode")

	data, err := client.Post("/api/v1/templates/"+args[0]+"/apply", map[string]any{
		"finding_id": findingID,
		"mode":       mode,
	})
	if err != nil {
		return err
	}
	return printTransitionResult(data)
}

func printTransitionResult(data []byte) error {
	var f FindingResponse
	if err := unmarshal(data, &f); err != nil {
		return err
	}

	if flagOutput == outputJSON {
		printJSON(f)
		return nil
	}
	if flagOutput == outputYAML {
		printYAML(f)
		return nil
	}
	fmt.Printf("%s: %s (version %d)\n", truncate(f.ID, 12), statusStr(f.Status), f.Version)
	return nil
}

// Import command.

var importCmd = &cobra.Command{
	Use:   "import SCANNER FILE",
	Short: "Import a scan report",
	Long: `Import a scan report and create one finding per alert.

Supported scanners: zap. Gzip-compressed reports are accepted.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	client := mustClient()

	file, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer file.Close()

	data, _, err := client.DoStream("POST", "/api/v1/import/"+args[0], file, "application/octet-stream")
	if err != nil {
		return err
	}

	var resp ImportResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	if flagOutput == outputJSON {
		printJSON(resp)
		return nil
	}
	fmt.Println(resp.Message)
	return nil
}
