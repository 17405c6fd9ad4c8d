// Package faker generates reproducible fake chain values from a seed.
//
// # Stream algorithm
//
// Every value is drawn from a SHA-256 counter-mode stream with domain
// separation per category:
//
//	block(category, n) = SHA256("rpcsim/faker/<category>/v1" || 0x00 || seed_be64 || n_be64)
//
// Each category (address, balance, transaction, hash) owns its own cursor n,
// starting at 0 and advancing by one per block drawn. Drawing a balance
// therefore never shifts the address sequence, and any implementation of
// the algorithm above reproduces the same values bit for bit.
package faker

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/rpcsim/internal/canon"
)

// Category names a logically independent value stream.
type Category string

const (
	CategoryAddress     Category = "address"
	CategoryBalance     Category = "balance"
	CategoryTransaction Category = "transaction"
	CategoryHash        Category = "hash"
)

// Balances are drawn from [1, maxBalance].
var maxBalance = uint256.NewInt(1_000_000_000_000_000_000)

// Transaction is a fake committed user transaction.
type Transaction struct {
	Hash           string `json:"hash" yaml:"hash"`
	Sender         string `json:"sender" yaml:"sender"`
	SequenceNumber uint64 `json:"sequence_number" yaml:"sequence_number"`
	GasUsed        uint64 `json:"gas_used" yaml:"gas_used"`
	Success        bool   `json:"success" yaml:"success"`
	Version        uint64 `json:"version" yaml:"version"`
	Timestamp      uint64 `json:"timestamp" yaml:"timestamp"`
}

// Faker produces fake values. Safe for concurrent use; concurrent callers
// interleave on the per-category cursors, so reproducibility requires the
// same call order.
type Faker struct {
	mu      sync.Mutex
	seed    int64
	cursors map[Category]uint64
}

// New creates a faker seeded with seed.
func New(seed int64) *Faker {
	return &Faker{
		seed:    seed,
		cursors: make(map[Category]uint64),
	}
}

// NewFromEntropy creates a faker with a random seed. Output is not
// reproducible unless the seed is read back with Seed.
func NewFromEntropy() *Faker {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("faker: read entropy: " + err.Error())
	}
	return New(int64(binary.BigEndian.Uint64(b[:])))
}

// Seed returns the seed driving the stream.
func (f *Faker) Seed() int64 {
	return f.seed
}

// Cursor returns how many blocks category has consumed.
func (f *Faker) Cursor(category Category) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[category]
}

// next draws the next 32-byte block for category.
func (f *Faker) next(category Category) [32]byte {
	f.mu.Lock()
	n := f.cursors[category]
	f.cursors[category] = n + 1
	f.mu.Unlock()

	return Block(f.seed, category, n)
}

// Block computes block n of category's stream for seed. Exposed so the
// algorithm can be checked against other implementations.
func Block(seed int64, category Category, n uint64) [32]byte {
	var data [16]byte
	binary.BigEndian.PutUint64(data[:8], uint64(seed))
	binary.BigEndian.PutUint64(data[8:], n)
	return canon.SumWithDomain("rpcsim/faker/"+string(category)+"/v1", data[:])
}

// Address returns a fake 32-byte account address: "0x" + 64 lowercase hex.
func (f *Faker) Address() string {
	b := f.next(CategoryAddress)
	return common.BytesToHash(b[:]).Hex()
}

// Balance returns a fake balance as a decimal string in [1, 10^18].
func (f *Faker) Balance() string {
	b := f.next(CategoryBalance)
	v := new(uint256.Int).SetBytes(b[:16])
	v.Mod(v, maxBalance)
	v.AddUint64(v, 1)
	return v.Dec()
}

// Hash returns a fake 32-byte hash in 0x-prefixed hex.
func (f *Faker) Hash() string {
	b := f.next(CategoryHash)
	return common.BytesToHash(b[:]).Hex()
}

// Transaction returns a fake committed transaction. It consumes two blocks
// of the transaction stream: the first is the hash, the second supplies the
// sender and the numeric fields.
func (f *Faker) Transaction() Transaction {
	hash := f.next(CategoryTransaction)
	body := f.next(CategoryTransaction)

	// The sender is derived from the body block so it does not repeat the hash.
	sender := canon.SumWithDomain("rpcsim/faker/sender/v1", body[:])

	return Transaction{
		Hash:           common.BytesToHash(hash[:]).Hex(),
		Sender:         common.BytesToHash(sender[:]).Hex(),
		SequenceNumber: binary.BigEndian.Uint64(body[0:8]) % 10_000,
		GasUsed:        binary.BigEndian.Uint64(body[8:16])%100_000 + 1,
		Success:        body[16] < 230,
		Version:        binary.BigEndian.Uint64(body[18:26]) % 1_000_000_000,
		Timestamp:      1_600_000_000_000_000 + uint64(binary.BigEndian.Uint32(body[26:30]))*1_000_000,
	}
}
