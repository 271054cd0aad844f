package custody

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store provides pebble-based persistence for balances and approvals.
// Key schema:
//
//	bal:{owner}:{asset} -> 8-byte big-endian amount
//	apr:{owner}:{actor} -> 8-byte big-endian expiry
const (
	prefixBalance  = "bal:"
	prefixApproval = "apr:"
)

type Store struct {
	db *pebble.DB
}

// NewStore opens a pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func balanceKey(owner, asset common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, owner.Hex(), asset.Hex()))
}

func approvalKey(owner, actor common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixApproval, owner.Hex(), actor.Hex()))
}

// SaveBalance persists one balance cell.
func (s *Store) SaveBalance(owner, asset common.Address, amount uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], amount)
	if err := s.db.Set(balanceKey(owner, asset), buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// SaveApproval persists one delegation cell. Zero expiry deletes it.
func (s *Store) SaveApproval(owner, actor common.Address, expiry int64) error {
	key := approvalKey(owner, actor)
	if expiry == 0 {
		if err := s.db.Delete(key, pebble.Sync); err != nil {
			return fmt.Errorf("failed to delete approval: %w", err)
		}
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(expiry))
	if err := s.db.Set(key, buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save approval: %w", err)
	}
	return nil
}

// LoadAll scans the database into the given maps.
func (s *Store) LoadAll(
	balances map[common.Address]map[common.Address]uint64,
	approvals map[common.Address]map[common.Address]int64,
) error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		val := iter.Value()
		if len(val) != 8 {
			continue
		}
		switch {
		case strings.HasPrefix(key, prefixBalance):
			owner, asset, ok := splitAddrPair(key[len(prefixBalance):])
			if !ok {
				continue
			}
			m, exists := balances[owner]
			if !exists {
				m = make(map[common.Address]uint64)
				balances[owner] = m
			}
			m[asset] = binary.BigEndian.Uint64(val)
		case strings.HasPrefix(key, prefixApproval):
			owner, actor, ok := splitAddrPair(key[len(prefixApproval):])
			if !ok {
				continue
			}
			m, exists := approvals[owner]
			if !exists {
				m = make(map[common.Address]int64)
				approvals[owner] = m
			}
			m[actor] = int64(binary.BigEndian.Uint64(val))
		}
	}
	return iter.Error()
}

// splitAddrPair parses "{hexaddr}:{hexaddr}".
func splitAddrPair(s string) (common.Address, common.Address, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) || !common.IsHexAddress(parts[1]) {
		return common.Address{}, common.Address{}, false
	}
	return common.HexToAddress(parts[0]), common.HexToAddress(parts[1]), true
}
