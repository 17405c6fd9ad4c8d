package mockclient

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/roach88/rpcsim/internal/faker"
	"github.com/roach88/rpcsim/internal/rpcerr"
	"github.com/roach88/rpcsim/internal/validate"
)

// RPC method names.
const (
	MethodGetAccountBalance    = "getAccountBalance"
	MethodGetAccount           = "getAccount"
	MethodGetTransactionByHash = "getTransactionByHash"
	MethodSubmitTransaction    = "submitTransaction"
	MethodWaitForTransaction   = "waitForTransaction"
	MethodGetLedgerInfo        = "getLedgerInfo"
)

// DefaultChainID is the chain id reported by the default ledger info.
const DefaultChainID = 4

// Account is the on-chain account resource.
type Account struct {
	Address           string `json:"address" yaml:"address"`
	SequenceNumber    string `json:"sequence_number" yaml:"sequence_number"`
	AuthenticationKey string `json:"authentication_key" yaml:"authentication_key"`
}

// LedgerInfo describes the ledger head.
type LedgerInfo struct {
	ChainID         int64  `json:"chain_id" yaml:"chain_id"`
	LedgerVersion   uint64 `json:"ledger_version" yaml:"ledger_version"`
	LedgerTimestamp uint64 `json:"ledger_timestamp" yaml:"ledger_timestamp"`
}

func builtinDefaults() map[string]DefaultFunc {
	return map[string]DefaultFunc{
		MethodGetAccountBalance: func(f *faker.Faker, _ string, _ []any) any {
			return f.Balance()
		},
		MethodGetAccount: func(f *faker.Faker, _ string, args []any) any {
			addr, ok := firstString(args)
			if !ok {
				addr = f.Address()
			}
			return Account{
				Address:           addr,
				SequenceNumber:    "0",
				AuthenticationKey: f.Hash(),
			}
		},
		MethodGetTransactionByHash: defaultTransactionForHash,
		MethodSubmitTransaction:    defaultTransaction,
		MethodWaitForTransaction:   defaultTransactionForHash,
		MethodGetLedgerInfo: func(f *faker.Faker, _ string, _ []any) any {
			tx := f.Transaction()
			return LedgerInfo{
				ChainID:         DefaultChainID,
				LedgerVersion:   tx.Version,
				LedgerTimestamp: tx.Timestamp,
			}
		},
	}
}

func defaultTransaction(f *faker.Faker, _ string, _ []any) any {
	return f.Transaction()
}

// defaultTransactionForHash returns a fake transaction carrying the queried
// hash.
func defaultTransactionForHash(f *faker.Faker, _ string, args []any) any {
	tx := f.Transaction()
	if h, ok := firstString(args); ok {
		tx.Hash = h
	}
	return tx
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok && s != ""
}

// GetAccountBalance returns the balance of address in base units.
func (c *Client) GetAccountBalance(ctx context.Context, address string) (string, error) {
	return typed[string](ctx, c, MethodGetAccountBalance, []any{address}, decodeBalance(MethodGetAccountBalance))
}

// GetAccount returns the account resource at address.
func (c *Client) GetAccount(ctx context.Context, address string) (Account, error) {
	return typed[Account](ctx, c, MethodGetAccount, []any{address}, decodeStruct[Account](MethodGetAccount, "Account"))
}

// GetTransactionByHash returns the committed transaction with hash.
func (c *Client) GetTransactionByHash(ctx context.Context, hash string) (faker.Transaction, error) {
	return typed[faker.Transaction](ctx, c, MethodGetTransactionByHash, []any{hash},
		decodeStruct[faker.Transaction](MethodGetTransactionByHash, "Transaction"))
}

// SubmitTransaction submits payload. The payload is validated first; a
// rejected payload is recorded as a failed call without reaching the
// simulator, so it spends no rate-limit budget.
func (c *Client) SubmitTransaction(ctx context.Context, payload any) (faker.Transaction, error) {
	args := []any{payload}
	if err := precheck(MethodSubmitTransaction, args); err != nil {
		c.reject(ctx, MethodSubmitTransaction, args, err)
		return faker.Transaction{}, err
	}
	return typed[faker.Transaction](ctx, c, MethodSubmitTransaction, args,
		decodeStruct[faker.Transaction](MethodSubmitTransaction, "Transaction"))
}

// WaitForTransaction waits for the transaction with hash to commit.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) (faker.Transaction, error) {
	return typed[faker.Transaction](ctx, c, MethodWaitForTransaction, []any{hash},
		decodeStruct[faker.Transaction](MethodWaitForTransaction, "Transaction"))
}

// GetLedgerInfo returns the ledger head.
func (c *Client) GetLedgerInfo(ctx context.Context) (LedgerInfo, error) {
	return typed[LedgerInfo](ctx, c, MethodGetLedgerInfo, nil, decodeStruct[LedgerInfo](MethodGetLedgerInfo, "LedgerInfo"))
}

// precheck validates arguments before a call reaches the simulator.
func precheck(method string, args []any) error {
	if method == MethodSubmitTransaction && len(args) == 1 {
		_, err := validate.ValidatePayload(args[0])
		return err
	}
	return nil
}

func typed[T any](ctx context.Context, c *Client, method string, args []any, decode func(any) (any, error)) (T, error) {
	var zero T
	v, err := c.invoke(ctx, method, args, decode)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// decodeBalance accepts a decimal string or an integer, which YAML and JSON
// scenario files produce for unquoted numbers.
func decodeBalance(method string) func(any) (any, error) {
	return func(v any) (any, error) {
		switch x := v.(type) {
		case string:
			return x, nil
		case int:
			return strconv.Itoa(x), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case uint64:
			return strconv.FormatUint(x, 10), nil
		case json.Number:
			if _, err := strconv.ParseUint(string(x), 10, 64); err == nil {
				return string(x), nil
			}
		}
		return nil, rpcerr.InvalidResponse(method, "balance string", v)
	}
}

// decodeStruct accepts a T, a *T, or a map whose fields decode strictly
// into T.
func decodeStruct[T any](method, want string) func(any) (any, error) {
	return func(v any) (any, error) {
		switch x := v.(type) {
		case T:
			return x, nil
		case *T:
			if x != nil {
				return *x, nil
			}
		case map[string]any:
			var out T
			if err := remarshal(x, &out); err == nil {
				return out, nil
			}
		}
		return nil, rpcerr.InvalidResponse(method, want, v)
	}
}

func remarshal(in map[string]any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
