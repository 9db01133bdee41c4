package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List resources",
}

var getFindingsCmd = &cobra.Command{
	Use:     "findings",
	Aliases: []string{"finding", "f"},
	Short:   "List findings",
	RunE:    runGetFindings,
}

var getTemplatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"template", "tpl"},
	Short:   "List finding templates",
	RunE:    runGetTemplates,
}

var getEndpointsCmd = &cobra.Command{
	Use:   "endpoints FINDING-ID",
	Short: "List a finding's endpoints",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetEndpoints,
}

var getCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count findings in a view",
	RunE:  runGetCount,
}

func init() {
	getFindingsCmd.Flags().String("view", "", "Filter view: all, open, closed, accepted")
	getFindingsCmd.Flags().Int("page", 1, "Page number")
	getFindingsCmd.Flags().Int("per-page", 20, "Items per page")

	getTemplatesCmd.Flags().Int("page", 1, "Page number")
	getTemplatesCmd.Flags().Int("per-page", 20, "Items per page")

	getCountCmd.Flags().String("view", "open", "View to count: all, open, closed, accepted")

	getCmd.AddCommand(getFindingsCmd)
	getCmd.AddCommand(getTemplatesCmd)
	getCmd.AddCommand(getEndpointsCmd)
	getCmd.AddCommand(getCountCmd)
}

func runGetFindings(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	if v, _ := cmd.Flags().GetString("view"); v != "" {
		params.Set("view", v)
	}
	if v, _ := cmd.Flags().GetInt("page"); v > 0 {
		params.Set("page", strconv.Itoa(v))
	}
	if v, _ := cmd.Flags().GetInt("per-page"); v > 0 {
		params.Set("per_page", strconv.Itoa(v))
	}

	path := "/api/v1/findings"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp FindingListResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	case outputWide:
		t := newTable("ID", "TITLE", "SEVERITY", "CVSS", "STATUS", "VULN-ID", "CREATED")
		for _, f := range resp.Data {
			t.AddRow(f.ID, truncate(f.Title, 50), f.Severity, cvssStr(f.CVSSScore), statusStr(f.Status), f.VulnerabilityID, shortTime(f.CreatedAt))
		}
		t.Flush()
		printPagination(resp.Total, resp.Page, resp.PerPage, resp.TotalPages)
	default:
		t := newTable("ID", "TITLE", "SEVERITY", "STATUS")
		for _, f := range resp.Data {
			t.AddRow(truncate(f.ID, 12), truncate(f.Title, 50), f.Severity, statusStr(f.Status))
		}
		t.Flush()
		printPagination(resp.Total, resp.Page, resp.PerPage, resp.TotalPages)
	}
	return nil
}

func runGetTemplates(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	if v, _ := cmd.Flags().GetInt("page"); v > 0 {
		params.Set("page", strconv.Itoa(v))
	}
	if v, _ := cmd.Flags().GetInt("per-page"); v > 0 {
		params.Set("per_page", strconv.Itoa(v))
	}

	path := "/api/v1/templates"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp TemplateListResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		t := newTable("ID", "TITLE", "SEVERITY", "VULN-IDS", "CREATED")
		for _, tpl := range resp.Data {
			t.AddRow(truncate(tpl.ID, 12), truncate(tpl.Title, 50), tpl.Severity, strconv.Itoa(len(tpl.VulnerabilityIDs)), shortTime(tpl.CreatedAt))
		}
		t.Flush()
		printPagination(resp.Total, resp.Page, resp.PerPage, resp.TotalPages)
	}
	return nil
}

func runGetEndpoints(cmd *cobra.Command, args []string) error {
	client := mustClient()

	data, err := client.Get("/api/v1/findings/" + args[0] + "/endpoints")
	if err != nil {
		return err
	}

	var resp EndpointListResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		t := newTable("ID", "HOST", "MITIGATED")
		for _, e := range resp.Data {
			t.AddRow(truncate(e.ID, 12), e.Host, boolToStr(e.Mitigated))
		}
		t.Flush()
	}
	return nil
}

func runGetCount(cmd *cobra.Command, args []string) error {
	client := mustClient()

	view, _ := cmd.Flags().GetString("view")
	data, err := client.Get("/api/v1/findings/count?view=" + url.QueryEscape(view))
	if err != nil {
		return err
	}

	var resp CountResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	if flagOutput == outputJSON {
		printJSON(resp)
		return nil
	}
	fmt.Printf("%s: %d\n", resp.View, resp.Count)
	return nil
}
