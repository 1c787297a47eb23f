package cycle

import (
	"errors"
	"testing"
)

func TestClaimIsSingleUse(t *testing.T) {
	clk := NewClock(0)
	c := clk.Advance()
	if c.Number() != 1 {
		t.Fatalf("first cycle=%d want 1", c.Number())
	}
	if err := c.Claim("segments"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := c.Claim("segments"); !errors.Is(err, ErrClaimed) {
		t.Fatalf("second claim err=%v want ErrClaimed", err)
	}
	if err := c.Claim("cache"); err != nil {
		t.Fatalf("other name should be claimable: %v", err)
	}
}

func TestAdvanceClosesPreviousToken(t *testing.T) {
	clk := NewClock(41)
	old := clk.Advance()
	cur := clk.Advance()
	if clk.Now() != 43 || cur.Number() != 43 {
		t.Fatalf("now=%d cur=%d want 43", clk.Now(), cur.Number())
	}
	if err := old.Claim("segments"); !errors.Is(err, ErrStale) {
		t.Fatalf("stale claim err=%v want ErrStale", err)
	}
}
