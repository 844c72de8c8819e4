package enums

import "testing"

func TestSubmissionStatusTerminal(t *testing.T) {
	terminal := map[SubmissionStatus]bool{
		SubmissionStatusCompleted: true,
		SubmissionStatusRejected:  true,
	}
	for _, status := range validSubmissionStatuses {
		if got := status.IsTerminal(); got != terminal[status] {
			t.Fatalf("status %s expected terminal=%v got %v", status, terminal[status], got)
		}
	}
}

func TestParseSubmissionStatus(t *testing.T) {
	if _, err := ParseSubmissionStatus("community_voting"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseSubmissionStatus("archived"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestPreOrderStatusConfirmed(t *testing.T) {
	cases := map[PreOrderStatus]bool{
		PreOrderStatusPending:   false,
		PreOrderStatusCharged:   true,
		PreOrderStatusFulfilled: true,
		PreOrderStatusRefunded:  false,
	}
	for status, want := range cases {
		if got := status.IsConfirmed(); got != want {
			t.Fatalf("status %s expected confirmed=%v got %v", status, want, got)
		}
	}
}

func TestParseVoteType(t *testing.T) {
	if v, err := ParseVoteType("upvote"); err != nil || v != VoteTypeUpvote {
		t.Fatalf("expected upvote, got %q err=%v", v, err)
	}
	if _, err := ParseVoteType("meh"); err == nil {
		t.Fatal("expected invalid vote type to fail")
	}
}

func TestParseCurrencyNormalizes(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	if err != nil || c != CurrencyUSD {
		t.Fatalf("expected USD, got %q err=%v", c, err)
	}
}
