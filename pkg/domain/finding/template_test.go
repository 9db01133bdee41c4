package finding

import (
	"testing"

	"github.com/vulndeck/api/pkg/domain/shared"
)

func newTemplateSource(t *testing.T) *Finding {
	t.Helper()
	f, err := New("App Vulnerable to XSS", SeverityHigh)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	f.UpdateDescription("Reflected XSS in the search form")
	f.references = "https://owasp.org/xss"
	f.AddVulnerabilityIDs("REF-1", "REF-2")
	return f
}

func TestNewTemplateFromFinding(t *testing.T) {
	actor := shared.NewID()
	f := newTemplateSource(t)
	_ = f.Close(actor, "resolved")
	_ = f.AcceptRisk(actor, "accepted")

	tpl := NewTemplateFromFinding(f)

	if tpl.Title() != f.Title() || tpl.Description() != f.Description() {
		t.Error("template should copy title and description")
	}
	if tpl.Severity() != f.Severity() {
		t.Errorf("template severity = %q, want %q", tpl.Severity(), f.Severity())
	}
	if len(tpl.VulnerabilityIDs()) != 2 {
		t.Errorf("template vulnerability ids = %d, want 2", len(tpl.VulnerabilityIDs()))
	}

	// Snapshots carry descriptive fields only; mutating the source after
	// the snapshot must not leak through the shared slice.
	f.AddVulnerabilityIDs("REF-3")
	if len(tpl.VulnerabilityIDs()) != 2 {
		t.Error("template ids must be an independent copy")
	}
}

func TestTemplate_ApplyTo_Replace(t *testing.T) {
	tpl := NewTemplateFromFinding(newTemplateSource(t))

	target, err := New("Different title", SeverityLow)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	target.UpdateDescription("existing description")
	_ = target.AcceptRisk(shared.NewID(), "accepted before template")
	statusBefore := target.Status()
	notesBefore := len(target.Notes())

	tpl.ApplyTo(target, ModeReplace)

	if target.Title() != "App Vulnerable to XSS" {
		t.Errorf("title = %q, want template title", target.Title())
	}
	if target.Description() != "Reflected XSS in the search form" {
		t.Errorf("description = %q, want template description", target.Description())
	}
	if target.Severity() != SeverityHigh {
		t.Errorf("severity = %q, want template severity", target.Severity())
	}
	if target.Status() != statusBefore {
		t.Error("applying a template must never touch status flags")
	}
	if len(target.Notes()) != notesBefore {
		t.Error("applying a template must never touch notes")
	}
}

func TestTemplate_ApplyTo_ReplaceOverwritesWithEmpty(t *testing.T) {
	source, err := New("Sparse template", SeverityMedium)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	tpl := NewTemplateFromFinding(source)

	target := newTemplateSource(t)
	tpl.ApplyTo(target, ModeReplace)

	if target.Description() != "" {
		t.Errorf("description = %q, want empty: replace discards prior values even for empty template fields", target.Description())
	}
	if len(target.VulnerabilityIDs()) != 0 {
		t.Error("vulnerability ids should be replaced with the template's empty set")
	}
}

func TestTemplate_ApplyTo_Merge(t *testing.T) {
	tpl := NewTemplateFromFinding(newTemplateSource(t))

	target, err := New("Kept title", SeverityLow)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	tpl.ApplyTo(target, ModeMerge)

	if target.Title() != "Kept title" {
		t.Errorf("title = %q, merge must never overwrite a non-empty field", target.Title())
	}
	if target.Severity() != SeverityLow {
		t.Errorf("severity = %q, merge must keep the target's severity", target.Severity())
	}
	if target.Description() != "Reflected XSS in the search form" {
		t.Errorf("description = %q, merge should fill empty fields", target.Description())
	}
	if len(target.VulnerabilityIDs()) != 2 {
		t.Error("merge should fill the empty vulnerability id list")
	}
}

func TestTemplate_RoundTripPreservesSpecialCharacters(t *testing.T) {
	source, err := New(`App Vulnerable to XSS from \Template`, SeverityHigh)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	source.UpdateDescription(`payload: <script>"\\"</script>`)

	tpl := NewTemplateFromFinding(source)

	fresh, err := New("placeholder", SeverityInfo)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	tpl.ApplyTo(fresh, ModeReplace)

	if fresh.Title() != `App Vulnerable to XSS from \Template` {
		t.Errorf("title = %q, backslash must pass through unescaped", fresh.Title())
	}
	if fresh.Description() != `payload: <script>"\\"</script>` {
		t.Errorf("description = %q, special characters must pass through unmodified", fresh.Description())
	}
}

func TestTemplate_NewFinding(t *testing.T) {
	tpl := NewTemplateFromFinding(newTemplateSource(t))

	f, err := tpl.NewFinding()
	if err != nil {
		t.Fatalf("NewFinding() unexpected error: %v", err)
	}

	if f.Title() != tpl.Title() {
		t.Errorf("title = %q, want %q", f.Title(), tpl.Title())
	}
	if !f.Status().Active {
		t.Error("finding from template starts active")
	}
	if f.TemplateID() == nil || !f.TemplateID().Equals(tpl.ID()) {
		t.Error("finding should reference its origin template")
	}
	if len(f.Notes()) != 0 {
		t.Error("finding from template starts with no notes")
	}
}

func TestParseApplyMode(t *testing.T) {
	tests := []struct {
		input   string
		want    ApplyMode
		wantErr bool
	}{
		{input: "replace", want: ModeReplace},
		{input: "merge", want: ModeMerge},
		{input: "", want: ModeMerge},
		{input: "overwrite", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("mode "+tt.input, func(t *testing.T) {
			got, err := ParseApplyMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseApplyMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseApplyMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
