package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show detailed information about a resource",
}

var describeFindingCmd = &cobra.Command{
	Use:     "finding ID",
	Aliases: []string{"f"},
	Short:   "Show a finding in detail",
	Args:    cobra.ExactArgs(1),
	RunE:    runDescribeFinding,
}

var describeTemplateCmd = &cobra.Command{
	Use:     "template ID",
	Aliases: []string{"tpl"},
	Short:   "Show a template in detail",
	Args:    cobra.ExactArgs(1),
	RunE:    runDescribeTemplate,
}

func init() {
	describeCmd.AddCommand(describeFindingCmd)
	describeCmd.AddCommand(describeTemplateCmd)
}

func runDescribeFinding(cmd *cobra.Command, args []string) error {
	client := mustClient()

	data, err := client.Get("/api/v1/findings/" + args[0])
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
	if flagOutput == outputYAML {
		printYAML(f)
		return nil
	}

	w := os.Stdout
	fmt.Fprintf(w, "Name:         %s\n", f.Title)
	fmt.Fprintf(w, "ID:           %s\n", f.ID)
	fmt.Fprintf(w, "Severity:     %s\n", f.Severity)
	if f.CVSSVector != "" {
		fmt.Fprintf(w, "CVSS:         %s (%s)\n", cvssStr(f.CVSSScore), f.CVSSVector)
	}
	fmt.Fprintf(w, "Status:       %s\n", statusStr(f.Status))
	fmt.Fprintf(w, "Flags:        active=%t verified=%t false_positive=%t out_of_scope=%t mitigated=%t risk_accepted=%t under_review=%t duplicate=%t\n",
		f.Status.Active, f.Status.Verified, f.Status.FalsePositive, f.Status.OutOfScope,
		f.Status.Mitigated, f.Status.RiskAccepted, f.Status.UnderReview, f.Status.Duplicate)
	if f.VulnerabilityID != "" {
		fmt.Fprintf(w, "Vuln ID:      %s\n", f.VulnerabilityID)
	}
	if len(f.AdditionalVulnerability) > 0 {
		fmt.Fprintf(w, "Also Known:   %s\n", strings.Join(f.AdditionalVulnerability, ", "))
	}
	if len(f.Reviewers) > 0 {
		fmt.Fprintf(w, "Reviewers:    %s\n", strings.Join(f.Reviewers, ", "))
	}
	if f.TemplateID != "" {
		fmt.Fprintf(w, "Template:     %s\n", f.TemplateID)
	}
	fmt.Fprintf(w, "Version:      %d\n", f.Version)
	fmt.Fprintf(w, "Created:      %s\n", shortTime(f.CreatedAt))
	fmt.Fprintf(w, "Updated:      %s\n", shortTime(f.UpdatedAt))
	if f.MitigatedAt != nil {
		fmt.Fprintf(w, "Mitigated:    %s\n", shortTime(*f.MitigatedAt))
	}
	if f.Description != "" {
		fmt.Fprintf(w, "\nDescription:\n  %s\n", strings.ReplaceAll(f.Description, "\n", "\n  "))
	}
	if f.References != "" {
		fmt.Fprintf(w, "\nReferences:\n  %s\n", strings.ReplaceAll(f.References, "\n", "\n  "))
	}
	if len(f.Notes) > 0 {
		fmt.Fprintf(w, "\nNotes:\n")
		for _, n := range f.Notes {
			fmt.Fprintf(w, "  [%s] %s: %s\n", shortTime(n.CreatedAt), truncate(n.AuthorID, 12), n.Entry)
		}
	}
	return nil
}

func runDescribeTemplate(cmd *cobra.Command, args []string) error {
	client := mustClient()

	data, err := client.Get("/api/v1/templates/" + args[0])
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

	w := os.Stdout
	fmt.Fprintf(w, "Name:         %s\n", t.Title)
	fmt.Fprintf(w, "ID:           %s\n", t.ID)
	fmt.Fprintf(w, "Severity:     %s\n", t.Severity)
	if len(t.VulnerabilityIDs) > 0 {
		fmt.Fprintf(w, "Vuln IDs:     %s\n", strings.Join(t.VulnerabilityIDs, ", "))
	}
	fmt.Fprintf(w, "Created:      %s\n", shortTime(t.CreatedAt))
	if t.Description != "" {
		fmt.Fprintf(w, "\nDescription:\n  %s\n", strings.ReplaceAll(t.Description, "\n", "\n  "))
	}
	if t.References != "" {
		fmt.Fprintf(w, "\nReferences:\n  %s\n", strings.ReplaceAll(t.References, "\n", "\n  "))
	}
	return nil
}
