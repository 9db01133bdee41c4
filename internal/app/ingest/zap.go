package ingest

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/vulndeck/api/pkg/domain/finding"
)

// zapReport mirrors the OWASP ZAP XML report structure.
type zapReport struct {
	XMLName   xml.Name  `xml:"OWASPZAPReport"`
	Version   string    `xml:"version,attr"`
	Generated string    `xml:"generated,attr"`
	Sites     []zapSite `xml:"site"`
}

type zapSite struct {
	Name   string     `xml:"name,attr"`
	Host   string     `xml:"host,attr"`
	Port   string     `xml:"port,attr"`
	Alerts []zapAlert `xml:"alerts>alertitem"`
}

type zapAlert struct {
	PluginID    string        `xml:"pluginid"`
	Name        string        `xml:"name"`
	RiskCode    int           `xml:"riskcode"`
	Description string        `xml:"desc"`
	Solution    string        `xml:"solution"`
	Reference   string        `xml:"reference"`
	CWEID       string        `xml:"cweid"`
	Instances   []zapInstance `xml:"instances>instance"`
}

type zapInstance struct {
	URI    string `xml:"uri"`
	Method string `xml:"method"`
	Param  string `xml:"param"`
}

// ParsedFinding is one finding extracted from a scan report, not yet
// persisted.
type ParsedFinding struct {
	Title            string
	Description      string
	References       string
	Severity         finding.Severity
	VulnerabilityIDs []string
	Endpoints        []string
}

// parseZAP decodes a ZAP XML report into findings. One alert makes one
// finding; the alert's instances become the finding's endpoints.
func parseZAP(r io.Reader) ([]ParsedFinding, error) {
	var report zapReport
	if err := xml.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("malformed ZAP report: %w", err)
	}

	var findings []ParsedFinding
	for _, site := range report.Sites {
		for _, alert := range site.Alerts {
			f := ParsedFinding{
				Title:       alert.Name,
				Description: stripTags(alert.Description),
				References:  stripTags(alert.Reference),
				Severity:    zapSeverity(alert.RiskCode),
			}
			if alert.CWEID != "" && alert.CWEID != "0" && alert.CWEID != "-1" {
				f.VulnerabilityIDs = append(f.VulnerabilityIDs, "CWE-"+alert.CWEID)
			}
			seen := make(map[string]bool)
			for _, inst := range alert.Instances {
				if inst.URI == "" || seen[inst.URI] {
					continue
				}
				seen[inst.URI] = true
				f.Endpoints = append(f.Endpoints, inst.URI)
			}
			if len(f.Endpoints) == 0 && site.Name != "" {
				f.Endpoints = append(f.Endpoints, site.Name)
			}
			findings = append(findings, f)
		}
	}
	return findings, nil
}

// zapSeverity maps ZAP risk codes to severities. ZAP has no critical level.
func zapSeverity(riskCode int) finding.Severity {
	switch riskCode {
	case 3:
		return finding.SeverityHigh
	case 2:
		return finding.SeverityMedium
	case 1:
		return finding.SeverityLow
	default:
		return finding.SeverityInfo
	}
}

// stripTags removes the simple HTML markup ZAP embeds in description and
// reference fields.
func stripTags(s string) string {
	replacer := strings.NewReplacer(
		"<p>", "", "</p>", "\n",
		"<br>", "\n", "<br/>", "\n",
	)
	return strings.TrimSpace(replacer.Replace(s))
}
