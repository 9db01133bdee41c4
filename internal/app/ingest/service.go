// Package ingest imports scanner reports and turns them into findings.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/vulndeck/api/internal/metrics"
	"github.com/vulndeck/api/pkg/domain/endpoint"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
)

// Scanner identifies a supported report format.
type Scanner string

// Supported scanners.
const (
	ScannerZAP Scanner = "zap"
)

// displayNames maps scanners to the name used in import summaries.
var displayNames = map[Scanner]string{
	ScannerZAP: "ZAP Scan",
}

// ParseScanner parses a scanner name.
func ParseScanner(s string) (Scanner, error) {
	switch Scanner(s) {
	case ScannerZAP:
		return Scanner(s), nil
	default:
		return "", fmt.Errorf("%w: unsupported scanner %q", shared.ErrValidation, s)
	}
}

// MaxFindingsPerReport caps how many findings a single report may create.
const MaxFindingsPerReport = 10000

// Service imports scan reports.
type Service struct {
	findingRepo  finding.Repository
	endpointRepo endpoint.Repository
	logger       *logger.Logger
}

// NewService creates a new ingest Service.
func NewService(findingRepo finding.Repository, endpointRepo endpoint.Repository, log *logger.Logger) *Service {
	return &Service{
		findingRepo:  findingRepo,
		endpointRepo: endpointRepo,
		logger:       log.With("service", "ingest"),
	}
}

// ImportInput represents one report import.
type ImportInput struct {
	Scanner string `validate:"required"`
	Report  io.Reader
}

// ImportOutput summarizes an import.
type ImportOutput struct {
	Created    int      `json:"created"`
	FindingIDs []string `json:"finding_ids"`
	Message    string   `json:"message"`
}

// Import parses a scan report and creates one active finding per alert,
// with the alert's affected URLs as endpoints. Gzip-compressed reports are
// detected and decompressed transparently.
func (s *Service) Import(ctx context.Context, input ImportInput) (*ImportOutput, error) {
	scanner, err := ParseScanner(input.Scanner)
	if err != nil {
		return nil, err
	}

	started := time.Now()

	reader, err := maybeDecompress(input.Report)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(string(scanner), "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	parsed, err := parseZAP(reader)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(string(scanner), "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if len(parsed) > MaxFindingsPerReport {
		metrics.ImportsTotal.WithLabelValues(string(scanner), "rejected").Inc()
		return nil, fmt.Errorf("%w: report contains %d findings, limit is %d", shared.ErrValidation, len(parsed), MaxFindingsPerReport)
	}

	output := &ImportOutput{}
	for _, p := range parsed {
		f, err := finding.New(p.Title, p.Severity)
		if err != nil {
			s.logger.Warn("skipping unparseable finding", "title", p.Title, "error", err)
			continue
		}
		f.UpdateDescription(p.Description)
		f.AddVulnerabilityIDs(p.VulnerabilityIDs...)

		if err := s.findingRepo.Create(ctx, f); err != nil {
			metrics.ImportsTotal.WithLabelValues(string(scanner), "error").Inc()
			return nil, fmt.Errorf("failed to create finding: %w", err)
		}

		for _, host := range p.Endpoints {
			ep, err := endpoint.New(f.ID(), host)
			if err != nil {
				continue
			}
			if err := s.endpointRepo.Create(ctx, ep); err != nil {
				metrics.ImportsTotal.WithLabelValues(string(scanner), "error").Inc()
				return nil, fmt.Errorf("failed to create endpoint: %w", err)
			}
		}

		metrics.ImportedFindingsTotal.WithLabelValues(string(scanner), string(p.Severity)).Inc()
		output.Created++
		output.FindingIDs = append(output.FindingIDs, f.ID().String())
	}

	output.Message = fmt.Sprintf("%s processed a total of %d findings", displayNames[scanner], output.Created)

	metrics.ImportsTotal.WithLabelValues(string(scanner), "ok").Inc()
	metrics.ImportDuration.WithLabelValues(string(scanner)).Observe(time.Since(started).Seconds())
	s.logger.Info("scan report imported", "scanner", string(scanner), "findings", output.Created)
	return output, nil
}

// maybeDecompress peeks at the stream and wraps it in a gzip reader when the
// gzip magic bytes are present.
func maybeDecompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return gz, nil
	}
	return br, nil
}
