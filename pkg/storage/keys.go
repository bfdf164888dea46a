package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Orders use a big-endian id so iteration yields creation
// order; the per-user index is one value per user, rewritten on append.
const (
	prefixOrder = "ord:"
	prefixIndex = "uidx:"
	keyState    = "meta:state"
)

// orderKey returns "ord:" + 8-byte big-endian id.
func orderKey(id uint64) []byte {
	k := make([]byte, len(prefixOrder)+8)
	copy(k, prefixOrder)
	binary.BigEndian.PutUint64(k[len(prefixOrder):], id)
	return k
}

// indexKey returns "uidx:{address}".
func indexKey(user common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixIndex, user.Hex()))
}

func stateKey() []byte { return []byte(keyState) }

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// userFromIndexKey parses the address back out of a "uidx:" key.
func userFromIndexKey(key []byte) (common.Address, error) {
	if len(key) <= len(prefixIndex) {
		return common.Address{}, fmt.Errorf("invalid index key length: %d", len(key))
	}
	hex := string(key[len(prefixIndex):])
	if !common.IsHexAddress(hex) {
		return common.Address{}, fmt.Errorf("invalid address in index key: %s", hex)
	}
	return common.HexToAddress(hex), nil
}
