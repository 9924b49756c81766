package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func writePolicyFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}
	return path
}

func TestNewFileSource_LoadsInitialPolicy(t *testing.T) {
	path := writePolicyFile(t, `
profile: EXPERT
blockMergeOnFail: true
blockReleaseOnFail: true
blockMergeOnAgentFail: true
blockReleaseOnAgentFail: true
requireTraderReview: true
hardFailOnMissingIndicators: true
failClosedOnEvidenceUnavailable: true
`)

	fs, err := NewFileSource(FileSourceConfig{Path: path}, nil)
	if err != nil {
		t.Fatalf("expected initial load to succeed, got error: %v", err)
	}

	pol := fs.Current()
	if pol == nil {
		t.Fatal("expected a current policy")
	}
	if pol.Profile != ProfileExpert {
		t.Errorf("expected EXPERT profile, got %s", pol.Profile)
	}
	if !pol.RequireTraderReview {
		t.Error("expected requireTraderReview to be set")
	}
}

func TestNewFileSource_InitialLoadMustSucceed(t *testing.T) {
	path := writePolicyFile(t, `profile: TURBO`)

	if _, err := NewFileSource(FileSourceConfig{Path: path}, nil); err == nil {
		t.Fatal("expected malformed initial policy to fail construction")
	}
}

func TestNewFileSource_EmptyPath(t *testing.T) {
	if _, err := NewFileSource(FileSourceConfig{}, nil); err == nil {
		t.Fatal("expected empty path to be rejected")
	}
}
