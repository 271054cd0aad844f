// Package book holds the venue's resting limit orders: a process-wide
// arena addressed by opaque monotonic handles, plus the directional sweep
// the matching engine drives against a pool reference price.
package book

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/quanta-swap/crossbook/pkg/fixedpoint"
)

// Direction names the two flows a sweep can take through the book.
type Direction int8

const (
	// ReserveIn consumes incoming reserve and pays out secured.
	ReserveIn Direction = iota
	// SecuredIn consumes incoming secured and pays out reserve.
	SecuredIn
)

func (d Direction) String() string {
	if d == ReserveIn {
		return "reserve_in"
	}
	return "secured_in"
}

// Order is a two-sided resting limit order. Both balances live in the
// order: a fill moves the consumed amount onto the received side and the
// paid amount off the offered side, rotating the order in place rather
// than removing it. Orders leave the book only through explicit
// cancellation, which zeroes the slot.
type Order struct {
	Owner common.Address

	ReserveAmount uint64
	SecuredAmount uint64

	// PaySecuredTick prices the leg where the order pays secured for
	// incoming reserve; PayReserveTick prices the opposite leg. Both
	// encode secured-per-reserve on the 1.0001 ladder, and the first
	// must be strictly below the second for the order to be active.
	PaySecuredTick int32
	PayReserveTick int32

	// Expiry is a unix timestamp; zero means the order never expires.
	// Expiry is evaluated lazily at sweep time, never via events.
	Expiry int64

	// Tag is opaque caller metadata carried through unmodified.
	Tag [2]byte

	Cancelled bool
}

// Validate rejects malformed orders before they reach the arena.
func (o *Order) Validate() error {
	if o.PaySecuredTick >= o.PayReserveTick {
		return fmt.Errorf("book: crossed ticks %d >= %d", o.PaySecuredTick, o.PayReserveTick)
	}
	if o.PaySecuredTick < fixedpoint.MinTick || o.PayReserveTick > fixedpoint.MaxTick {
		return fmt.Errorf("book: tick outside [%d, %d]", fixedpoint.MinTick, fixedpoint.MaxTick)
	}
	if o.ReserveAmount == 0 && o.SecuredAmount == 0 {
		return fmt.Errorf("book: order offers nothing on either side")
	}
	return nil
}

// Active reports whether the order can currently fill in the given
// direction. Activity is evaluated from the fields alone at query time;
// there are no explicit state transitions.
func (o *Order) Active(dir Direction, now int64) bool {
	if o.Cancelled {
		return false
	}
	if o.PaySecuredTick >= o.PayReserveTick {
		return false
	}
	if o.Expiry != 0 && o.Expiry <= now {
		return false
	}
	if dir == ReserveIn {
		return o.SecuredAmount > 0
	}
	return o.ReserveAmount > 0
}

// offered returns the balance the order pays out in the given direction.
func (o *Order) offered(dir Direction) uint64 {
	if dir == ReserveIn {
		return o.SecuredAmount
	}
	return o.ReserveAmount
}

// priceTick returns the tick pricing the order's paying leg for the
// given direction.
func (o *Order) priceTick(dir Direction) int32 {
	if dir == ReserveIn {
		return o.PaySecuredTick
	}
	return o.PayReserveTick
}

// Price returns the order's fixed Q64.64 secured-per-reserve price for
// the given direction.
func (o *Order) Price(dir Direction) (*uint256.Int, error) {
	return fixedpoint.PriceFromTick(o.priceTick(dir))
}
