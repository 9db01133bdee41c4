package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete resources",
}

var deleteFindingCmd = &cobra.Command{
	Use:     "finding ID",
	Aliases: []string{"f"},
	Short:   "Delete a finding and its notes",
	Long: `Delete a finding and its notes.

Endpoints recorded for the finding are kept as historical evidence.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteFinding,
}

var deleteTemplateCmd = &cobra.Command{
	Use:     "template ID",
	Aliases: []string{"tpl"},
	Short:   "Delete a template",
	Long: `Delete a template.

Findings created from the template keep their template reference.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteTemplate,
}

func init() {
	deleteFindingCmd.Flags().Bool("force", false, "Skip confirmation prompt")
	deleteTemplateCmd.Flags().Bool("force", false, "Skip confirmation prompt")

	deleteCmd.AddCommand(deleteFindingCmd)
	deleteCmd.AddCommand(deleteTemplateCmd)
}

func runDeleteFinding(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if !force && !confirm(fmt.Sprintf("Delete finding %s?", args[0])) {
		fmt.Println("Aborted.")
		return nil
	}

	client := mustClient()
	if err := client.Delete("/api/v1/findings/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Finding %s deleted.\n", args[0])
	return nil
}

func runDeleteTemplate(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if !force && !confirm(fmt.Sprintf("Delete template %s?", args[0])) {
		fmt.Println("Aborted.")
		return nil
	}

	client := mustClient()
	if err := client.Delete("/api/v1/templates/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Template %s deleted.\n", args[0])
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
