package pool

import (
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"github.com/quanta-swap/crossbook/pkg/venue/book"
)

func TestDepositMintsSqrtOnFirst(t *testing.T) {
	p := New()
	shares, err := p.Deposit(4_000_000, 1_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if shares.Uint64() != 2_000_000 {
		t.Errorf("first deposit minted %s, want sqrt(4e6*1e6) = 2e6", shares.Dec())
	}
	if p.ReserveAmount != 4_000_000 || p.SecuredAmount != 1_000_000 {
		t.Errorf("reserves = (%d, %d)", p.ReserveAmount, p.SecuredAmount)
	}
}

func TestDepositMintsMinProRataAfterFirst(t *testing.T) {
	p := New()
	if _, err := p.Deposit(1_000_000, 1_000_000); err != nil {
		t.Fatal(err)
	}
	// Unbalanced follow-up: the smaller ratio governs, so the excess
	// secured mints nothing extra.
	shares, err := p.Deposit(100_000, 500_000)
	if err != nil {
		t.Fatal(err)
	}
	if shares.Uint64() != 100_000 {
		t.Errorf("unbalanced deposit minted %s, want 100000", shares.Dec())
	}
}

func TestDepositRejectsOneSided(t *testing.T) {
	p := New()
	if _, err := p.Deposit(0, 1000); err == nil {
		t.Error("one-sided deposit accepted")
	}
	if _, err := p.Deposit(1000, 0); err == nil {
		t.Error("one-sided deposit accepted")
	}
}

func TestWithdrawProRata(t *testing.T) {
	p := New()
	minted, err := p.Deposit(1_000_000, 4_000_000)
	if err != nil {
		t.Fatal(err)
	}

	half := new(uint256.Int).Rsh(minted, 1)
	dr, ds, err := p.Withdraw(half)
	if err != nil {
		t.Fatal(err)
	}
	if dr != 500_000 || ds != 2_000_000 {
		t.Errorf("half withdrawal = (%d, %d), want (500000, 2000000)", dr, ds)
	}

	dr, ds, err = p.Withdraw(p.TotalShares.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if dr != 500_000 || ds != 2_000_000 {
		t.Errorf("final withdrawal = (%d, %d), want the remainder", dr, ds)
	}
	if p.ReserveAmount != 0 || p.SecuredAmount != 0 || !p.TotalShares.IsZero() {
		t.Error("pool not empty after full withdrawal")
	}
}

func TestWithdrawRejectsOverBurn(t *testing.T) {
	p := New()
	minted, _ := p.Deposit(1000, 1000)
	over := new(uint256.Int).AddUint64(minted, 1)
	if _, _, err := p.Withdraw(over); err == nil {
		t.Error("burning more than outstanding accepted")
	}
	if _, _, err := p.Withdraw(new(uint256.Int)); err == nil {
		t.Error("zero burn accepted")
	}
}

func TestBoundedSwapUnlimited(t *testing.T) {
	p := New()
	p.Deposit(1_000_000, 1_000_000)

	leftover, out := p.BoundedSwap(book.ReserveIn, 1_000, nil)
	if leftover != 0 {
		t.Errorf("leftover = %d, want 0", leftover)
	}
	// floor(1e6 * 1000 / 1001000) = 999.
	if out != 999 {
		t.Errorf("out = %d, want 999", out)
	}
	if p.ReserveAmount != 1_001_000 || p.SecuredAmount != 999_001 {
		t.Errorf("reserves = (%d, %d)", p.ReserveAmount, p.SecuredAmount)
	}
}

func TestBoundedSwapRoundsOutputDown(t *testing.T) {
	p := New()
	p.Deposit(1_000_000, 2_000_000)

	// The exact output for 50000 reserve is 2e6*50000/1050000 =
	// 95238.095...; the pool keeps the fraction, so the opposite
	// reserve lands on the ceiling of k over the new same-side reserve.
	leftover, out := p.BoundedSwap(book.ReserveIn, 50_000, nil)
	if leftover != 0 {
		t.Errorf("leftover = %d, want 0", leftover)
	}
	if out != 95_238 {
		t.Errorf("out = %d, want 95238", out)
	}
	if p.ReserveAmount != 1_050_000 || p.SecuredAmount != 1_904_762 {
		t.Errorf("reserves = (%d, %d), want (1050000, 1904762)",
			p.ReserveAmount, p.SecuredAmount)
	}
}

func TestBoundedSwapStopsAtLimit(t *testing.T) {
	p := New()
	p.Deposit(1_000_000, 1_000_000)

	// Price starts at 1.0 and falls as reserve flows in; a limit of
	// 0.25 caps the reserve side at sqrt(k/0.25) = 2e6.
	limit := new(uint256.Int).Lsh(uint256.NewInt(1), 62)
	leftover, out := p.BoundedSwap(book.ReserveIn, 5_000_000, limit)
	if leftover != 4_000_000 {
		t.Errorf("leftover = %d, want 4000000", leftover)
	}
	if out != 500_000 {
		t.Errorf("out = %d, want 500000", out)
	}
	// Post-trade price sits exactly on the limit.
	price, ok := p.PriceX64()
	if !ok || price.Cmp(limit) != 0 {
		t.Errorf("post price = %v, want exactly the limit", price)
	}
}

func TestBoundedSwapAtLimitAlready(t *testing.T) {
	p := New()
	p.Deposit(2_000_000, 1_000_000) // price 0.5

	// Reserve-in pushes the price below 0.5; a 0.5 limit permits nothing.
	limit := new(uint256.Int).Lsh(uint256.NewInt(1), 63)
	leftover, out := p.BoundedSwap(book.ReserveIn, 1_000, limit)
	if leftover != 1_000 || out != 0 {
		t.Errorf("swap at limit = (%d, %d), want full leftover and no output", leftover, out)
	}
}

func TestBoundedSwapDustReturnsInput(t *testing.T) {
	p := New()
	p.Deposit(1_000_000_000, 1_000)

	leftover, out := p.BoundedSwap(book.ReserveIn, 1, nil)
	if leftover != 1 || out != 0 {
		t.Errorf("dust swap = (%d, %d), want input returned untouched", leftover, out)
	}
	if p.ReserveAmount != 1_000_000_000 {
		t.Error("dust input was donated to the pool")
	}
}

func TestBoundedSwapUninitialized(t *testing.T) {
	p := New()
	leftover, out := p.BoundedSwap(book.SecuredIn, 1_000, nil)
	if leftover != 1_000 || out != 0 {
		t.Errorf("empty pool swap = (%d, %d)", leftover, out)
	}
}

func TestBoundedSwapPreservesProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := rapid.Uint64Range(1, 1<<32).Draw(t, "reserve")
		s := rapid.Uint64Range(1, 1<<32).Draw(t, "secured")
		in := rapid.Uint64Range(1, 1<<32).Draw(t, "in")
		dir := book.ReserveIn
		if rapid.Bool().Draw(t, "securedIn") {
			dir = book.SecuredIn
		}

		p := &Pool{ReserveAmount: r, SecuredAmount: s, TotalShares: new(uint256.Int)}
		k0 := new(uint256.Int).Mul(uint256.NewInt(r), uint256.NewInt(s))

		leftover, out := p.BoundedSwap(dir, in, nil)

		k1 := new(uint256.Int).Mul(
			uint256.NewInt(p.ReserveAmount), uint256.NewInt(p.SecuredAmount))
		if k1.Cmp(k0) < 0 {
			t.Fatalf("product decreased: %s -> %s (in=%d leftover=%d out=%d)",
				k0.Dec(), k1.Dec(), in, leftover, out)
		}
		if out > 0 && leftover != 0 {
			t.Fatalf("unlimited swap left input behind: leftover=%d out=%d", leftover, out)
		}
	})
}
