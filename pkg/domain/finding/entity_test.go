package finding

import (
	"errors"
	"testing"

	"github.com/vulndeck/api/pkg/domain/shared"
)

func newTestFinding(t *testing.T) *Finding {
	t.Helper()
	f, err := New("App Vulnerable to XSS", SeverityHigh)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return f
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		severity Severity
		wantErr  bool
	}{
		{name: "valid finding", title: "App Vulnerable to XSS", severity: SeverityHigh},
		{name: "empty title", title: "", severity: SeverityHigh, wantErr: true},
		{name: "invalid severity", title: "x", severity: Severity("Severe"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.title, tt.severity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !f.Status().Active {
				t.Error("new finding should be active")
			}
			if f.Status().Mitigated {
				t.Error("new finding should not be mitigated")
			}
			if f.Version() != 0 {
				t.Errorf("Version() = %d, want 0", f.Version())
			}
		})
	}
}

func TestFinding_CloseReopen(t *testing.T) {
	actor := shared.NewID()

	t.Run("close sets mitigated and appends note", func(t *testing.T) {
		f := newTestFinding(t)

		err := f.Close(actor, "All issues in this finding have been resolved")
		if err != nil {
			t.Fatalf("Close() unexpected error: %v", err)
		}
		if f.Status().Active || !f.Status().Mitigated {
			t.Errorf("flags after close = %+v, want active=false mitigated=true", f.Status())
		}
		if f.MitigatedAt() == nil {
			t.Error("MitigatedAt should be set after close")
		}
		if len(f.Notes()) != 1 {
			t.Fatalf("notes = %d, want 1", len(f.Notes()))
		}
		if f.Notes()[0].Author() != actor {
			t.Error("note author should be the acting user")
		}
	})

	t.Run("close requires a note", func(t *testing.T) {
		f := newTestFinding(t)
		if err := f.Close(actor, ""); !errors.Is(err, ErrNoteRequired) {
			t.Errorf("Close() error = %v, want ErrNoteRequired", err)
		}
		if f.Status().Mitigated {
			t.Error("failed close must not mutate flags")
		}
	})

	t.Run("close on inactive finding fails precondition", func(t *testing.T) {
		f := newTestFinding(t)
		_ = f.Close(actor, "resolved")

		err := f.Close(actor, "resolved again")
		if !IsTransitionPrecondition(err) {
			t.Errorf("second Close() error = %v, want ErrTransitionPrecondition", err)
		}
		if len(f.Notes()) != 1 {
			t.Error("failed transition must not append a note")
		}
	})

	t.Run("reopen on unmitigated finding fails precondition", func(t *testing.T) {
		f := newTestFinding(t)
		if err := f.Reopen(actor, "still an issue"); !IsTransitionPrecondition(err) {
			t.Errorf("Reopen() error = %v, want ErrTransitionPrecondition", err)
		}
	})

	t.Run("close then reopen restores pre-close flags", func(t *testing.T) {
		f := newTestFinding(t)
		before := f.Status()

		if err := f.Close(actor, "resolved"); err != nil {
			t.Fatalf("Close() unexpected error: %v", err)
		}
		if err := f.Reopen(actor, "regressed"); err != nil {
			t.Fatalf("Reopen() unexpected error: %v", err)
		}

		if f.Status() != before {
			t.Errorf("flags after close+reopen = %+v, want %+v", f.Status(), before)
		}
		if f.MitigatedAt() != nil {
			t.Error("MitigatedAt should be cleared after reopen")
		}
	})
}

func TestFinding_RiskAcceptance(t *testing.T) {
	actor := shared.NewID()

	t.Run("accept has no precondition", func(t *testing.T) {
		f := newTestFinding(t)
		if err := f.AcceptRisk(actor, "risk accepted by the business"); err != nil {
			t.Fatalf("AcceptRisk() unexpected error: %v", err)
		}
		if !f.Status().RiskAccepted {
			t.Error("RiskAccepted should be set")
		}
		if !f.Status().Active {
			t.Error("accepting risk must not deactivate the finding")
		}
	})

	t.Run("accept works on a closed finding too", func(t *testing.T) {
		f := newTestFinding(t)
		_ = f.Close(actor, "resolved")
		if err := f.AcceptRisk(actor, "accepted anyway"); err != nil {
			t.Fatalf("AcceptRisk() unexpected error: %v", err)
		}
		if !f.Status().Mitigated {
			t.Error("accepting risk must not change mitigation")
		}
	})

	t.Run("unaccept requires prior acceptance", func(t *testing.T) {
		f := newTestFinding(t)
		if err := f.UnacceptRisk(actor, "never accepted"); !IsTransitionPrecondition(err) {
			t.Errorf("UnacceptRisk() error = %v, want ErrTransitionPrecondition", err)
		}

		_ = f.AcceptRisk(actor, "accepted")
		if err := f.UnacceptRisk(actor, "changed our mind"); err != nil {
			t.Fatalf("UnacceptRisk() unexpected error: %v", err)
		}
		if f.Status().RiskAccepted {
			t.Error("RiskAccepted should be cleared")
		}
	})
}

func TestFinding_Review(t *testing.T) {
	actor := shared.NewID()
	reviewer := shared.NewID()

	t.Run("mark for review requires reviewers", func(t *testing.T) {
		f := newTestFinding(t)
		if err := f.MarkForReview(actor, "please review", nil); !errors.Is(err, ErrNoReviewers) {
			t.Errorf("MarkForReview() error = %v, want ErrNoReviewers", err)
		}
	})

	t.Run("mark then clear review", func(t *testing.T) {
		f := newTestFinding(t)

		err := f.MarkForReview(actor, "to be reviewed critically", []shared.ID{reviewer})
		if err != nil {
			t.Fatalf("MarkForReview() unexpected error: %v", err)
		}
		if !f.Status().UnderReview {
			t.Error("UnderReview should be set")
		}
		if f.ReviewRequestedAt() == nil {
			t.Error("ReviewRequestedAt should be set")
		}

		err = f.ClearReview(actor, "reviewed and confirmed", true, true)
		if err != nil {
			t.Fatalf("ClearReview() unexpected error: %v", err)
		}
		if f.Status().UnderReview {
			t.Error("UnderReview should be cleared")
		}
		if !f.Status().Active || !f.Status().Verified {
			t.Errorf("flags = %+v, want active and verified set", f.Status())
		}
		if f.ReviewRequestedAt() != nil {
			t.Error("ReviewRequestedAt should be cleared")
		}
		if len(f.Reviewers()) != 0 {
			t.Error("reviewers should be cleared")
		}
	})

	t.Run("clear review without open request fails", func(t *testing.T) {
		f := newTestFinding(t)
		if err := f.ClearReview(actor, "nothing open", true, false); !IsTransitionPrecondition(err) {
			t.Errorf("ClearReview() error = %v, want ErrTransitionPrecondition", err)
		}
	})
}

func TestFinding_ApplyFieldUpdates(t *testing.T) {
	actor := shared.NewID()
	yes, no := true, false

	t.Run("conflicting updates rejected without mutation", func(t *testing.T) {
		f := newTestFinding(t)
		err := f.ApplyFieldUpdates(actor, "bulk edit", FieldUpdates{Active: &yes, Mitigated: &yes})
		if !errors.Is(err, ErrConflictingFields) {
			t.Fatalf("error = %v, want ErrConflictingFields", err)
		}
		if len(f.Notes()) != 0 {
			t.Error("rejected update must not append a note")
		}
	})

	t.Run("mitigating routes through close semantics", func(t *testing.T) {
		f := newTestFinding(t)
		err := f.ApplyFieldUpdates(actor, "bulk close", FieldUpdates{Mitigated: &yes})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Status().Active || !f.Status().Mitigated {
			t.Errorf("flags = %+v, want active=false mitigated=true", f.Status())
		}
	})

	t.Run("reactivating clears mitigation", func(t *testing.T) {
		f := newTestFinding(t)
		_ = f.Close(actor, "resolved")

		err := f.ApplyFieldUpdates(actor, "bulk reopen", FieldUpdates{Active: &yes})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.Status().Active || f.Status().Mitigated {
			t.Errorf("flags = %+v, want active=true mitigated=false", f.Status())
		}
	})

	t.Run("mitigating an inactive unmitigated finding fails precondition", func(t *testing.T) {
		f := newTestFinding(t)
		_ = f.ApplyFieldUpdates(actor, "deactivate", FieldUpdates{Active: &no})

		err := f.ApplyFieldUpdates(actor, "bulk close", FieldUpdates{Mitigated: &yes})
		if !IsTransitionPrecondition(err) {
			t.Fatalf("error = %v, want ErrTransitionPrecondition", err)
		}
	})

	t.Run("independent flags set together", func(t *testing.T) {
		f := newTestFinding(t)
		err := f.ApplyFieldUpdates(actor, "triage", FieldUpdates{Verified: &yes, OutOfScope: &yes})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.Status().Verified || !f.Status().OutOfScope {
			t.Errorf("flags = %+v, want verified and out_of_scope set", f.Status())
		}
		if len(f.Notes()) != 1 {
			t.Errorf("notes = %d, want a single note for the compound update", len(f.Notes()))
		}
	})
}

func TestFinding_CVSSFields(t *testing.T) {
	f := newTestFinding(t)

	if err := f.SetCVSS("", 5.0); err == nil {
		t.Error("SetCVSS with empty vector should fail")
	}
	if err := f.SetCVSS("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", 12.0); err == nil {
		t.Error("SetCVSS with out-of-range score should fail")
	}

	vector := "CVSS:3.0/AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H"
	if err := f.SetCVSS(vector, 8.8); err != nil {
		t.Fatalf("SetCVSS() unexpected error: %v", err)
	}
	if f.CVSSVector() != vector {
		t.Errorf("CVSSVector() = %q, want %q", f.CVSSVector(), vector)
	}
	if f.CVSSScore() == nil || *f.CVSSScore() != 8.8 {
		t.Errorf("CVSSScore() = %v, want 8.8", f.CVSSScore())
	}

	f.ClearCVSS()
	if f.CVSSVector() != "" || f.CVSSScore() != nil {
		t.Error("ClearCVSS should empty both fields together")
	}
}

func TestFinding_VulnerabilityIDs(t *testing.T) {
	f := newTestFinding(t)
	f.AddVulnerabilityIDs("REF-1", "REF-2")
	f.AddVulnerabilityIDs("REF-3", "REF-4", "REF-3")

	if got := f.PrimaryVulnerabilityID(); got != "REF-1" {
		t.Errorf("PrimaryVulnerabilityID() = %q, want REF-1", got)
	}

	want := []string{"REF-2", "REF-3", "REF-4"}
	got := f.AdditionalVulnerabilityIDs()
	if len(got) != len(want) {
		t.Fatalf("AdditionalVulnerabilityIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AdditionalVulnerabilityIDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// The raw sequence keeps duplicates and order.
	if len(f.VulnerabilityIDs()) != 5 {
		t.Errorf("VulnerabilityIDs() kept %d entries, want 5", len(f.VulnerabilityIDs()))
	}
}

func TestFinding_NotePersistenceTracking(t *testing.T) {
	actor := shared.NewID()
	f := newTestFinding(t)

	_ = f.AddNote(actor, "first note")
	if len(f.NewNotes()) != 1 {
		t.Fatalf("NewNotes() = %d, want 1", len(f.NewNotes()))
	}

	f.CommitSave()
	if len(f.NewNotes()) != 0 {
		t.Errorf("NewNotes() after commit = %d, want 0", len(f.NewNotes()))
	}
	if f.Version() != 1 {
		t.Errorf("Version() after commit = %d, want 1", f.Version())
	}

	_ = f.AddNote(actor, "second note")
	if len(f.NewNotes()) != 1 {
		t.Errorf("NewNotes() = %d, want only the unpersisted note", len(f.NewNotes()))
	}
}
