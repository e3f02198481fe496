package seed

import "testing"

func TestComputeStatusCounts_Default(t *testing.T) {
	draft, pending, approved, rejected := computeStatusCounts(20, defaultStatusDistribution)
	if draft+pending+approved+rejected != 20 {
		t.Fatalf("sum mismatch: got %d", draft+pending+approved+rejected)
	}
	if draft != 4 || pending != 5 || approved != 8 || rejected != 3 {
		t.Fatalf("unexpected default counts: draft=%d, pending=%d, approved=%d, rejected=%d",
			draft, pending, approved, rejected)
	}
}

func TestComputeStatusCounts_RoundingGoesToApproved(t *testing.T) {
	// 7 does not divide evenly; the leftovers must land on approved.
	draft, pending, approved, rejected := computeStatusCounts(7, defaultStatusDistribution)
	if draft+pending+approved+rejected != 7 {
		t.Fatalf("sum mismatch: got %d", draft+pending+approved+rejected)
	}
	if approved < 3 {
		t.Fatalf("expected approved to absorb rounding, got %d", approved)
	}
}
