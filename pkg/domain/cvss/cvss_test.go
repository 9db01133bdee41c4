package cvss

import (
	"errors"
	"testing"
)

func TestValidateAndScore_ValidVectors(t *testing.T) {
	tests := []struct {
		name      string
		vector    string
		wantScore float64
	}{
		{
			name:      "v3.0 high impact low privilege",
			vector:    "CVSS:3.0/AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H",
			wantScore: 8.8,
		},
		{
			name:      "v3.1 network no privileges",
			vector:    "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
			wantScore: 9.8,
		},
		{
			name:      "v3.1 scope changed caps at ten",
			vector:    "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H",
			wantScore: 10.0,
		},
		{
			name:      "v3.1 local privilege escalation",
			vector:    "CVSS:3.1/AV:L/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H",
			wantScore: 7.8,
		},
		{
			name:      "v3.1 zero impact scores zero",
			vector:    "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:N/I:N/A:N",
			wantScore: 0.0,
		},
		{
			name:      "v4.0 vulnerable system impact only",
			vector:    "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N",
			wantScore: 9.3,
		},
		{
			name:      "v4.0 full impact",
			vector:    "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:H/SI:H/SA:H",
			wantScore: 10.0,
		},
		{
			name:      "v4.0 no impact scores zero",
			vector:    "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:N/VI:N/VA:N/SC:N/SI:N/SA:N",
			wantScore: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, score, err := ValidateAndScore(tt.vector)
			if err != nil {
				t.Fatalf("ValidateAndScore(%q) unexpected error: %v", tt.vector, err)
			}
			if normalized != tt.vector {
				t.Errorf("normalized = %q, want submitted text verbatim %q", normalized, tt.vector)
			}
			if score != tt.wantScore {
				t.Errorf("score = %.1f, want %.1f", score, tt.wantScore)
			}
		})
	}
}

func TestValidateAndScore_V4ClassMaximums(t *testing.T) {
	// v4.0 vectors score their macro equivalence class value. Each vector
	// here is the highest-scoring member of its class, where the class value
	// is exactly what the official FIRST calculator reports.
	tests := []struct {
		name      string
		vector    string
		wantScore float64
	}{
		{
			name:      "network full impact with subsequent systems",
			vector:    "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:H/SI:H/SA:H",
			wantScore: 10.0,
		},
		{
			name:      "network full impact vulnerable system only",
			vector:    "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N",
			wantScore: 9.3,
		},
		{
			name:      "adjacent full impact",
			vector:    "CVSS:4.0/AV:A/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N",
			wantScore: 8.7,
		},
		{
			name:      "high complexity full impact",
			vector:    "CVSS:4.0/AV:N/AC:H/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N",
			wantScore: 9.2,
		},
		{
			name:      "physical full impact",
			vector:    "CVSS:4.0/AV:P/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N",
			wantScore: 7.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, score, err := ValidateAndScore(tt.vector)
			if err != nil {
				t.Fatalf("ValidateAndScore(%q) unexpected error: %v", tt.vector, err)
			}
			if score != tt.wantScore {
				t.Errorf("score = %.1f, want %.1f", score, tt.wantScore)
			}
		})
	}
}

func TestValidateAndScore_V4SharedClassValue(t *testing.T) {
	// Vectors in the same equivalence class share one score: lowering VA
	// from H to L keeps the vector in the full-vulnerable-impact class.
	top := "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N"
	lower := "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:L/SC:N/SI:N/SA:N"

	_, topScore, err := ValidateAndScore(top)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, lowerScore, err := ValidateAndScore(lower)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topScore != lowerScore {
		t.Errorf("class members scored %.1f and %.1f, want one class value", topScore, lowerScore)
	}
}

func TestValidateAndScore_Deterministic(t *testing.T) {
	vector := "CVSS:3.1/AV:A/AC:H/PR:L/UI:R/S:C/C:L/I:L/A:H"

	_, first, err := ValidateAndScore(vector)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first < 0.0 || first > 10.0 {
		t.Fatalf("score %.1f out of range [0.0, 10.0]", first)
	}

	for range 10 {
		_, again, err := ValidateAndScore(vector)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("same vector produced different scores: %.1f then %.1f", first, again)
		}
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		vector  string
		wantErr error
	}{
		{
			name:    "valid v3 metrics without prefix",
			vector:  "AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "trailing slash after final metric",
			vector:  "CVSS:3.0/AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H/",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "v2 vector with prefix",
			vector:  "CVSS:2.0/AV:N/AC:L/Au:N/C:P/I:P/A:P",
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "bare v2 vector",
			vector:  "AV:N/AC:L/Au:N/C:P/I:P/A:P",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "rubbish",
			vector:  "happy little vector",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "empty string",
			vector:  "",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "prefix only",
			vector:  "CVSS:3.0",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "lowercase prefix",
			vector:  "cvss:3.0/AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "garbled version token",
			vector:  "CVSS:three/AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "future version",
			vector:  "CVSS:5.0/AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H",
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "duplicate metric",
			vector:  "CVSS:3.1/AV:N/AV:L/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "v2 metric in v3 vector",
			vector:  "CVSS:3.0/AV:N/AC:L/Au:N/C:P/I:P/A:P",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "missing mandatory metric",
			vector:  "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "doubled separator",
			vector:  "CVSS:3.1/AV:N//AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "v3 scope metric in v4 vector",
			vector:  "CVSS:4.0/AV:N/AC:L/AT:N/PR:L/UI:N/S:U/C:H/I:H/A:H",
			wantErr: ErrNoValidVectorFound,
		},
		{
			name:    "invalid metric value",
			vector:  "CVSS:3.1/AV:X/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
			wantErr: ErrNoValidVectorFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.vector)
			if err == nil {
				t.Fatalf("Parse(%q) expected error, got nil", tt.vector)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.vector, err, tt.wantErr)
			}
		})
	}
}

func TestParse_ErrorsAreDistinct(t *testing.T) {
	// Callers message the two failure modes differently, so an unsupported
	// version must never satisfy errors.Is against the parse-failure
	// sentinel and vice versa.
	_, v2Err := Parse("CVSS:2.0/AV:N/AC:L/Au:N/C:P/I:P/A:P")
	if !errors.Is(v2Err, ErrUnsupportedVersion) || errors.Is(v2Err, ErrNoValidVectorFound) {
		t.Errorf("v2 vector error = %v, want ErrUnsupportedVersion only", v2Err)
	}

	_, bareErr := Parse("AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H")
	if !errors.Is(bareErr, ErrNoValidVectorFound) || errors.Is(bareErr, ErrUnsupportedVersion) {
		t.Errorf("bare vector error = %v, want ErrNoValidVectorFound only", bareErr)
	}
}

func TestVector_Metric(t *testing.T) {
	vector, err := Parse("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:L/A:N")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vector.Metric("AV"); got != "N" {
		t.Errorf("Metric(AV) = %q, want N", got)
	}
	if got := vector.Version(); got != Version31 {
		t.Errorf("Version() = %q, want %q", got, Version31)
	}
}
