package dropbox

import (
	"testing"
	"time"
)

func TestPathsTarget(t *testing.T) {
	paths := NewPaths("/Videos", "")
	if got := paths.Target("Español/Test", "abc123"); got != "/Videos/Español_Test/abc123.mp4" {
		t.Fatalf("unexpected target %q", got)
	}
	if got := paths.Target("", "v1"); got != "/Videos/Unknown/v1.mp4" {
		t.Fatalf("unexpected fallback target %q", got)
	}
}

func TestPathsSegmentReplacesReservedCharacters(t *testing.T) {
	paths := NewPaths("/X", "Unknown")
	if got := paths.Segment(`a\b/c:d*e?f"g<h>i|j`); got != "a_b_c_d_e_f_g_h_i_j" {
		t.Fatalf("unexpected segment %q", got)
	}
	// Decomposed "n" + combining tilde composes to a single rune.
	if got := paths.Segment("Español"); got != "Español" {
		t.Fatalf("expected NFC form, got %q", got)
	}
}

func TestPathsConflictTarget(t *testing.T) {
	paths := NewPaths("/Videos///", "")
	now := time.UnixMilli(1700000000123)
	if got := paths.ConflictTarget("French", "v9", now); got != "/Videos/French/v9-1700000000123.mp4" {
		t.Fatalf("unexpected conflict target %q", got)
	}
	if paths.Root() != "/Videos" {
		t.Fatalf("unexpected root %q", paths.Root())
	}
}

func TestPathsFallbackIsSanitised(t *testing.T) {
	paths := NewPaths("/Videos", " misc/other ")
	if got := paths.Target("", "v1"); got != "/Videos/misc_other/v1.mp4" {
		t.Fatalf("unexpected fallback target %q", got)
	}
	if got := NewPaths("/Videos", "///").Segment(""); got != "___" {
		t.Fatalf("unexpected fallback segment %q", got)
	}
}
