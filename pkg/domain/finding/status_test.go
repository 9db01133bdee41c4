package finding

import (
	"errors"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input   string
		want    Severity
		wantErr bool
	}{
		{input: "Critical", want: SeverityCritical},
		{input: "critical", want: SeverityCritical},
		{input: " high ", want: SeverityHigh},
		{input: "Informational", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSeverity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSeverity(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSeverityFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Severity
	}{
		{score: 10.0, want: SeverityCritical},
		{score: 9.0, want: SeverityCritical},
		{score: 8.8, want: SeverityHigh},
		{score: 7.0, want: SeverityHigh},
		{score: 5.5, want: SeverityMedium},
		{score: 3.9, want: SeverityLow},
		{score: 0.1, want: SeverityLow},
		{score: 0.0, want: SeverityInfo},
	}

	for _, tt := range tests {
		if got := SeverityFromScore(tt.score); got != tt.want {
			t.Errorf("SeverityFromScore(%.1f) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestStatusFlags_Validate(t *testing.T) {
	if err := (StatusFlags{Active: true, Mitigated: true}).Validate(); !errors.Is(err, ErrConflictingFields) {
		t.Errorf("Validate() error = %v, want ErrConflictingFields", err)
	}
	if err := (StatusFlags{Active: true, RiskAccepted: true}).Validate(); err != nil {
		t.Errorf("risk acceptance is independent of active, got error %v", err)
	}
	if err := (StatusFlags{Mitigated: true, RiskAccepted: true}).Validate(); err != nil {
		t.Errorf("risk acceptance is independent of mitigation, got error %v", err)
	}
}

func TestFieldUpdates_Validate(t *testing.T) {
	yes := true
	no := false

	if err := (FieldUpdates{Active: &yes, Mitigated: &yes}).Validate(); !errors.Is(err, ErrConflictingFields) {
		t.Errorf("Validate() error = %v, want ErrConflictingFields", err)
	}
	if err := (FieldUpdates{Active: &yes, Mitigated: &no}).Validate(); err != nil {
		t.Errorf("active=true mitigated=false is a valid reopen, got error %v", err)
	}
	if err := (FieldUpdates{Verified: &yes, FalsePositive: &yes}).Validate(); !errors.Is(err, ErrConflictingFields) {
		t.Errorf("Validate() error = %v, want ErrConflictingFields for verified+false_positive", err)
	}
	if err := (FieldUpdates{Verified: &yes, FalsePositive: &no}).Validate(); err != nil {
		t.Errorf("verified=true false_positive=false is valid, got error %v", err)
	}
	if !(FieldUpdates{}).IsEmpty() {
		t.Error("zero FieldUpdates should be empty")
	}
}

func TestViewFilter(t *testing.T) {
	open := StatusFlags{Active: true}
	closed := StatusFlags{Mitigated: true}
	accepted := StatusFlags{Active: true, RiskAccepted: true}

	tests := []struct {
		name  string
		view  View
		flags StatusFlags
		want  bool
	}{
		{name: "all matches open", view: ViewAll, flags: open, want: true},
		{name: "all matches closed", view: ViewAll, flags: closed, want: true},
		{name: "open matches active", view: ViewOpen, flags: open, want: true},
		{name: "open rejects closed", view: ViewOpen, flags: closed, want: false},
		{name: "closed matches mitigated", view: ViewClosed, flags: closed, want: true},
		{name: "accepted matches risk accepted", view: ViewAccepted, flags: accepted, want: true},
		{name: "accepted rejects plain open", view: ViewAccepted, flags: open, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ViewFilter(tt.view).Matches(tt.flags); got != tt.want {
				t.Errorf("ViewFilter(%q).Matches(%+v) = %v, want %v", tt.view, tt.flags, got, tt.want)
			}
		})
	}
}

func TestParseView(t *testing.T) {
	if v, err := ParseView(""); err != nil || v != ViewAll {
		t.Errorf("ParseView(\"\") = %q, %v; want all, nil", v, err)
	}
	if _, err := ParseView("archived"); err == nil {
		t.Error("ParseView should reject unknown views")
	}
}
