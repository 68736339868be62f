package version

import (
	"errors"
	"testing"
)

type fakeTags struct {
	tags []string
	err  error
}

func (f *fakeTags) Tags() ([]string, error) { return f.tags, f.err }

func TestNext_NoTags(t *testing.T) {
	c := NewGitCalculator(&fakeTags{})
	got, err := c.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "v0.1.0" {
		t.Errorf("expected v0.1.0, got %q", got)
	}
}

func TestNext_BumpsPatch(t *testing.T) {
	c := NewGitCalculator(&fakeTags{tags: []string{"v0.1.0", "v0.2.3", "v0.2.1"}})
	got, err := c.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "v0.2.4" {
		t.Errorf("expected v0.2.4, got %q", got)
	}
}

func TestNext_IgnoresNonSemverTags(t *testing.T) {
	c := NewGitCalculator(&fakeTags{tags: []string{"release-candidate", "v1.0.0", "v1.0", "nightly-2025"}})
	got, err := c.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "v1.0.1" {
		t.Errorf("expected v1.0.1, got %q", got)
	}
}

func TestNext_NumericCompare(t *testing.T) {
	// v0.10.0 > v0.9.0 numerically, not lexically.
	c := NewGitCalculator(&fakeTags{tags: []string{"v0.9.0", "v0.10.0"}})
	got, err := c.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "v0.10.1" {
		t.Errorf("expected v0.10.1, got %q", got)
	}
}

func TestNext_TagListError(t *testing.T) {
	c := NewGitCalculator(&fakeTags{err: errors.New("boom")})
	if _, err := c.Next(); err == nil {
		t.Fatal("expected error from tag listing")
	}
}
