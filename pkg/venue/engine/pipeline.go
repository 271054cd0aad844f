package engine

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
	"github.com/quanta-swap/crossbook/pkg/venue/book"
	"github.com/quanta-swap/crossbook/pkg/venue/pool"
)

// pipelineOut carries the gross per-leg results of the four-stage match.
type pipelineOut struct {
	// securedOut is the secured obtained for the reserve-in leg.
	securedOut uint64
	// reserveOut is the reserve obtained for the secured-in leg, before
	// the output-side fee.
	reserveOut uint64
	// Leftovers are input amounts nothing could fill; they go back to
	// their contributors at settlement.
	reserveLeftover uint64
	securedLeftover uint64
}

// runPipeline executes the four stages in one pass with no retries:
//
//  1. sweep the book reserve->secured while its price is still in front
//     of the pool reference,
//  2. sweep the book secured->reserve likewise,
//  3. net the unmatched remainders directly against each other at the
//     pool's reference price without touching pool liquidity,
//  4. drive the single remaining leftover leg through the alternating
//     slam loop over {book cursor, pool}.
func (e *Engine) runPipeline(req *CrossRequest, pl *pool.Pool, reserveIn, securedIn uint64, now int64) (pipelineOut, error) {
	arena := e.reg.Arena()
	out := pipelineOut{}
	rRem, sRem := reserveIn, securedIn

	ref, havePool := pl.PriceX64()

	// Stages 1 and 2: book sweeps against the pool reference. With an
	// unpriceable pool every active order is attractive, so the sweep
	// reference degenerates to the extreme nothing can sit behind.
	var cursorR, cursorS int
	if rRem > 0 {
		reference := ref
		if !havePool {
			reference = new(uint256.Int).SetAllOne() // every price is below it
		}
		res, err := arena.Sweep(book.ReserveIn, req.ReserveCandidates, rRem, reference, book.NoCap, now)
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		cursorR = res.Cursor
		rRem -= res.Consumed
		out.securedOut = res.Obtained
	}
	if sRem > 0 {
		reference := ref
		if !havePool {
			reference = new(uint256.Int) // zero: every price is above it
		}
		res, err := arena.Sweep(book.SecuredIn, req.SecuredCandidates, sRem, reference, book.NoCap, now)
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		cursorS = res.Cursor
		sRem -= res.Consumed
		out.reserveOut = res.Obtained
	}

	// Stage 3: direct netting at the pool's reference price. The side
	// whose demand is covered fills fully; afterwards at most one side
	// still holds input, the invariant the single-leg slam stage relies
	// on. Skipped when the pool cannot price.
	if havePool && rRem > 0 && sRem > 0 {
		demand, err := fixedpoint.QuoteAtPrice(rRem, ref, false)
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		switch {
		case demand == 0:
			// Remaining reserve is too small to price; refund it so
			// only the secured side reaches the slam stage.
			out.reserveLeftover += rRem
			rRem = 0
		case demand <= sRem:
			if out.securedOut, err = fixedpoint.AddU64(out.securedOut, demand); err != nil {
				return out, fmt.Errorf("%w: %v", ErrOverflow, err)
			}
			if out.reserveOut, err = fixedpoint.AddU64(out.reserveOut, rRem); err != nil {
				return out, fmt.Errorf("%w: %v", ErrOverflow, err)
			}
			sRem -= demand
			rRem = 0
		default:
			rUsed, err := fixedpoint.InverseQuoteAtPrice(sRem, ref, false)
			if err != nil {
				return out, fmt.Errorf("%w: %v", ErrOverflow, err)
			}
			if rUsed > rRem {
				rUsed = rRem
			}
			if rUsed == 0 {
				// Remaining secured is too small to price; refund it
				// so only the reserve side reaches the slam stage.
				out.securedLeftover += sRem
				sRem = 0
				break
			}
			if out.securedOut, err = fixedpoint.AddU64(out.securedOut, sRem); err != nil {
				return out, fmt.Errorf("%w: %v", ErrOverflow, err)
			}
			if out.reserveOut, err = fixedpoint.AddU64(out.reserveOut, rUsed); err != nil {
				return out, fmt.Errorf("%w: %v", ErrOverflow, err)
			}
			rRem -= rUsed
			sRem = 0
		}
	}

	// Stage 4: slam whatever single-sided input remains.
	if rRem > 0 {
		consumed, got, err := e.slam(pl, book.ReserveIn, req.ReserveCandidates, cursorR, rRem, now)
		if err != nil {
			return out, err
		}
		rRem -= consumed
		if out.securedOut, err = fixedpoint.AddU64(out.securedOut, got); err != nil {
			return out, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
	}
	if sRem > 0 {
		consumed, got, err := e.slam(pl, book.SecuredIn, req.SecuredCandidates, cursorS, sRem, now)
		if err != nil {
			return out, err
		}
		sRem -= consumed
		if out.reserveOut, err = fixedpoint.AddU64(out.reserveOut, got); err != nil {
			return out, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
	}

	out.reserveLeftover += rRem
	out.securedLeftover += sRem
	return out, nil
}

// slam alternates fills between pool and book until neither venue can
// fill any further amount in one pass. The pool goes first but is capped
// at the next active order's effective level, so it never trades through
// a resting order; the book then fills that order with no reference gate.
// The iteration count is bounded by the candidate list length plus one
// full round.
func (e *Engine) slam(pl *pool.Pool, dir book.Direction, candidates []book.Handle, cursor int, remaining uint64, now int64) (consumed, obtained uint64, err error) {
	arena := e.reg.Arena()
	poolTurn := true
	fails := 0
	maxIters := 2 * (len(candidates) + 2)

	for iter := 0; remaining > 0 && fails < 2 && iter < maxIters; iter++ {
		filled := false
		if poolTurn {
			var limit *uint256.Int
			if idx, eff, ok := arena.NextActive(dir, candidates, cursor, now); ok {
				cursor = idx
				limit = eff
			}
			leftover, got := pl.BoundedSwap(dir, remaining, limit)
			if got > 0 {
				obtained, err = fixedpoint.AddU64(obtained, got)
				if err != nil {
					return 0, 0, fmt.Errorf("%w: %v", ErrOverflow, err)
				}
				consumed += remaining - leftover
				remaining = leftover
				filled = true
			}
		} else {
			idx, _, ok := arena.NextActive(dir, candidates, cursor, now)
			if ok {
				cursor = idx
				c, got, ferr := arena.FillOne(dir, candidates[idx], remaining, now)
				if ferr != nil {
					return 0, 0, fmt.Errorf("%w: %v", ErrOverflow, ferr)
				}
				if got > 0 {
					remaining -= c
					consumed += c
					obtained, err = fixedpoint.AddU64(obtained, got)
					if err != nil {
						return 0, 0, fmt.Errorf("%w: %v", ErrOverflow, err)
					}
					filled = true
				} else {
					// Order too small to fill anything; move past it.
					cursor = idx + 1
				}
			}
		}
		if filled {
			fails = 0
		} else {
			fails++
		}
		poolTurn = !poolTurn
	}
	return consumed, obtained, nil
}
