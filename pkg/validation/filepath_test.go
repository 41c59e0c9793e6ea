package validation

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func newValidator(t *testing.T) (*PathValidator, string) {
	t.Helper()
	base := t.TempDir()
	// Resolve the temp dir itself, macOS puts it behind a symlink.
	resolved, err := filepath.EvalSymlinks(base)
	if err != nil {
		t.Fatalf("resolving temp dir: %v", err)
	}
	v, err := NewPathValidator(resolved)
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}
	return v, resolved
}

func TestNewPathValidator(t *testing.T) {
	tests := []struct {
		name    string
		base    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "empty base",
			base:    func(*testing.T) string { return "" },
			wantErr: "cannot be empty",
		},
		{
			name:    "relative base",
			base:    func(*testing.T) string { return "snapshots" },
			wantErr: "must be absolute",
		},
		{
			name:    "missing base",
			base:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
			wantErr: "does not exist",
		},
		{
			name: "base is a file",
			base: func(t *testing.T) string {
				f := filepath.Join(t.TempDir(), "plan.json")
				if err := os.WriteFile(f, []byte("{}"), 0o644); err != nil {
					t.Fatal(err)
				}
				return f
			},
			wantErr: "not a directory",
		},
		{
			name: "valid base",
			base: func(t *testing.T) string { return t.TempDir() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPathValidator(tt.base(t))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAcceptsContainedPaths(t *testing.T) {
	v, base := newValidator(t)

	snapDir := filepath.Join(base, "20260801T000000Z", "normalized", "ads")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(snapDir, "campaigns.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []string{
		"20260801T000000Z",
		"20260801T000000Z/normalized/ads/campaigns.json",
		"20260801T000000Z/./normalized/ads/campaigns.json",
	}

	for _, userPath := range tests {
		got, err := v.Validate(userPath)
		if err != nil {
			t.Errorf("Validate(%q) error: %v", userPath, err)
			continue
		}
		if !strings.HasPrefix(got, base) {
			t.Errorf("Validate(%q) = %q, escapes base %q", userPath, got, base)
		}
	}
}

func TestValidateAllowsNotYetExistingTargets(t *testing.T) {
	v, base := newValidator(t)

	got, err := v.Validate("plans/plan-new.json")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := filepath.Join(base, "plans", "plan-new.json")
	if got != want {
		t.Fatalf("Validate = %q, want %q", got, want)
	}
}

func TestValidateRejectsEscapes(t *testing.T) {
	v, _ := newValidator(t)

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"absolute", "/etc/passwd"},
		{"parent traversal", "../outside"},
		{"nested traversal", "snapshots/../../outside"},
		{"bare dotdot", ".."},
		{"too long", strings.Repeat("a", 2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Validate(tt.path); err == nil {
				t.Errorf("Validate(%q) accepted an escaping path", tt.path)
			}
		})
	}
}

func TestValidateRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}

	v, base := newValidator(t)
	outside := t.TempDir()

	link := filepath.Join(base, "sneaky")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatal(err)
	}

	if _, err := v.Validate("sneaky"); err == nil {
		t.Fatal("Validate accepted a symlink pointing outside the base directory")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	v, _ := newValidator(t)

	_, err := v.Validate("../escape")
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if verr.UserPath != "../escape" {
		t.Errorf("UserPath = %q", verr.UserPath)
	}
	if !strings.Contains(verr.Error(), "path validation failed") {
		t.Errorf("Error() = %q", verr.Error())
	}
}
