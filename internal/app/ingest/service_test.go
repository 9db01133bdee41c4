package ingest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndeck/api/internal/infra/memory"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
	"github.com/vulndeck/api/pkg/pagination"
)

const zapSample = `<?xml version="1.0"?>
<OWASPZAPReport version="2.14.0" generated="Tue, 20 Aug 2024 10:00:00">
  <site name="https://app.example.com" host="app.example.com" port="443" ssl="true">
    <alerts>
      <alertitem>
        <pluginid>40012</pluginid>
        <alert>Cross Site Scripting (Reflected)</alert>
        <name>Cross Site Scripting (Reflected)</name>
        <riskcode>3</riskcode>
        <desc>&lt;p&gt;Reflected XSS in the search parameter.&lt;/p&gt;</desc>
        <instances>
          <instance>
            <uri>https://app.example.com/search?q=x</uri>
            <method>GET</method>
            <param>q</param>
          </instance>
          <instance>
            <uri>https://app.example.com/search?q=x</uri>
            <method>POST</method>
            <param>q</param>
          </instance>
        </instances>
        <solution>Encode output.</solution>
        <reference>https://owasp.org/xss</reference>
        <cweid>79</cweid>
      </alertitem>
      <alertitem>
        <pluginid>10038</pluginid>
        <name>Content Security Policy Header Not Set</name>
        <riskcode>2</riskcode>
        <desc>Missing CSP header.</desc>
        <instances>
          <instance><uri>https://app.example.com/</uri><method>GET</method></instance>
          <instance><uri>https://app.example.com/login</uri><method>GET</method></instance>
        </instances>
        <cweid>693</cweid>
      </alertitem>
      <alertitem>
        <pluginid>10021</pluginid>
        <name>X-Content-Type-Options Header Missing</name>
        <riskcode>1</riskcode>
        <desc>Missing header.</desc>
        <instances>
          <instance><uri>https://app.example.com/</uri><method>GET</method></instance>
        </instances>
        <cweid>693</cweid>
      </alertitem>
      <alertitem>
        <pluginid>10027</pluginid>
        <name>Information Disclosure - Suspicious Comments</name>
        <riskcode>0</riskcode>
        <desc>Suspicious comment found.</desc>
        <instances>
          <instance><uri>https://app.example.com/app.js</uri><method>GET</method></instance>
        </instances>
        <cweid>0</cweid>
      </alertitem>
    </alerts>
  </site>
</OWASPZAPReport>`

func newIngestEnv() (*Service, *memory.FindingRepository, *memory.EndpointRepository) {
	store := memory.NewStore()
	findings := memory.NewFindingRepository(store)
	endpoints := memory.NewEndpointRepository(store)
	return NewService(findings, endpoints, logger.NewNop()), findings, endpoints
}

func TestService_ImportZAP(t *testing.T) {
	svc, findings, endpoints := newIngestEnv()
	ctx := context.Background()

	out, err := svc.Import(ctx, ImportInput{
		Scanner: "zap",
		Report:  strings.NewReader(zapSample),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Created)
	assert.Equal(t, "ZAP Scan processed a total of 4 findings", out.Message)
	require.Len(t, out.FindingIDs, 4)

	all, total, err := findings.List(ctx, finding.Filter{}, pagination.New(1, 100))
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)

	bySeverity := make(map[finding.Severity]int)
	var xss *finding.Finding
	for _, f := range all {
		bySeverity[f.Severity()]++
		assert.True(t, f.Status().Active, "imported findings start active")
		if f.Title() == "Cross Site Scripting (Reflected)" {
			xss = f
		}
	}
	assert.Equal(t, 1, bySeverity[finding.SeverityHigh])
	assert.Equal(t, 1, bySeverity[finding.SeverityMedium])
	assert.Equal(t, 1, bySeverity[finding.SeverityLow])
	assert.Equal(t, 1, bySeverity[finding.SeverityInfo])

	require.NotNil(t, xss)
	assert.Equal(t, "CWE-79", xss.PrimaryVulnerabilityID())
	assert.Equal(t, "Reflected XSS in the search parameter.", xss.Description())

	// Duplicate instance URIs collapse into one endpoint.
	eps, err := endpoints.ListByFinding(ctx, xss.ID())
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "https://app.example.com/search?q=x", eps[0].Host())
	assert.False(t, eps[0].Mitigated())
}

func TestService_ImportGzippedReport(t *testing.T) {
	svc, _, _ := newIngestEnv()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(zapSample))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	out, err := svc.Import(context.Background(), ImportInput{
		Scanner: "zap",
		Report:  &buf,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Created)
}

func TestService_ImportRejections(t *testing.T) {
	svc, _, _ := newIngestEnv()
	ctx := context.Background()

	t.Run("unsupported scanner", func(t *testing.T) {
		_, err := svc.Import(ctx, ImportInput{Scanner: "nessus", Report: strings.NewReader(zapSample)})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("malformed report", func(t *testing.T) {
		_, err := svc.Import(ctx, ImportInput{Scanner: "zap", Report: strings.NewReader("not xml at all")})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestZapSeverityMapping(t *testing.T) {
	tests := []struct {
		riskCode int
		want     finding.Severity
	}{
		{riskCode: 3, want: finding.SeverityHigh},
		{riskCode: 2, want: finding.SeverityMedium},
		{riskCode: 1, want: finding.SeverityLow},
		{riskCode: 0, want: finding.SeverityInfo},
		{riskCode: -1, want: finding.SeverityInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, zapSeverity(tt.riskCode))
	}
}
