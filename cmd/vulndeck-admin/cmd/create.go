package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create resources",
}

var createFindingCmd = &cobra.Command{
	Use:     "finding",
	Aliases: []string{"f"},
	Short:   "Create a finding",
	RunE:    runCreateFinding,
}

var createTemplateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Snapshot a finding as a reusable template",
	RunE:    runCreateTemplate,
}

func init() {
	createFindingCmd.Flags().String("title", "", "Finding title (required)")
	createFindingCmd.Flags().String("severity", "", "Severity: Info, Low, Medium, High, Critical (required)")
	createFindingCmd.Flags().String("description", "", "Finding description")
	createFindingCmd.Flags().String("references", "", "References, newline separated")
	createFindingCmd.Flags().StringSlice("vuln-id", nil, "Vulnerability ID, repeatable; first one is primary")
	createFindingCmd.Flags().StringSlice("endpoint", nil, "Affected endpoint, repeatable")
	createFindingCmd.Flags().String("from-template", "", "Create from a template instead of flags")
	_ = createFindingCmd.MarkFlagRequired("severity")

	createTemplateCmd.Flags().String("from-finding", "", "Finding ID to snapshot (required)")
	_ = createTemplateCmd.MarkFlagRequired("from-finding")

	createCmd.AddCommand(createFindingCmd)
	createCmd.AddCommand(createTemplateCmd)
}

func runCreateFinding(cmd *cobra.Command, args []string) error {
	client := mustClient()

	if tplID, _ := cmd.Flags().GetString("from-template"); tplID != "" {
		data, err := client.Post("/api/v1/templates/"+tplID+"/findings", nil)
		if err != nil {
			return err
		}
		return printCreatedFinding(data)
	}

	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		return fmt.Errorf("--title is required")
	}
	severity, _ := cmd.Flags().GetString("severity")
	description, _ := cmd.Flags().GetString("description")
	references, _ := cmd.Flags().GetString("references")
	vulnIDs, _ := cmd.Flags().GetStringSlice("vuln-id")
	endpoints, _ := cmd.Flags().GetStringSlice("endpoint")

	data, err := client.Post("/api/v1/findings", map[string]any{
		"title":             title,
		"severity":          severity,
		"description":       description,
		"references":        references,
		"vulnerability_ids": vulnIDs,
		"endpoints":         endpoints,
	})
	if err != nil {
		return err
	}
	return printCreatedFinding(data)
}

func printCreatedFinding(data []byte) error {
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
	fmt.Printf("Finding %q created.\n", f.Title)
	fmt.Printf("  ID:       %s\n", f.ID)
	fmt.Printf("  Severity: %s\n", f.Severity)
	return nil
}

func runCreateTemplate(cmd *cobra.Command, args []string) error {
	client := mustClient()

	findingID, _ := cmd.Flags().GetString("from-finding")
	data, err := client.Post("/api/v1/findings/"+findingID+"/template", nil)
	if err != nil {
		return err
	}

	var t TemplateResponse
	if err := unmarshal(data, &t); err != nil {
		return err
	}

	if flagOutput == outputJSON {
		printJSON(t)
		return nil
	}
	if flagOutput == outputYAML {
		printYAML(t)
		return nil
	}
	fmt.Printf("Template %q created.\n", t.Title)
	fmt.Printf("  ID: %s\n", t.ID)
	return nil
}
