// Package validate checks transaction payloads before they reach the mock
// client.
//
// Two layers are provided. The payload validators (ValidateTransferPayload,
// ValidateEntryFunctionPayload, ValidatePayload) are pure functions with
// fixed rules. Registry holds named CUE schemas for payload shapes that are
// not built in.
//
// Every rejection is an *rpcerr.Error with code INVALID_ARGUMENT and
// Details["argument"] naming the offending field.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/rpcsim/internal/rpcerr"
)

// Payload type tags accepted in the "type" field of map payloads.
const (
	TypeTransfer      = "transfer"
	TypeEntryFunction = "entry_function_payload"
)

// Argument names reported in Details["argument"].
const (
	ArgAmount    = "amount"
	ArgFunction  = "function"
	ArgTo        = "to"
	ArgType      = "type"
	ArgArguments = "arguments"
)

var (
	functionPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}::[A-Za-z_][A-Za-z0-9_]*::[A-Za-z_][A-Za-z0-9_]*$`)
	amountPattern   = regexp.MustCompile(`^[0-9]+$`)
	addressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// TransferPayload moves Amount base units to the account To.
type TransferPayload struct {
	To     string `json:"to" yaml:"to"`
	Amount string `json:"amount" yaml:"amount"`
}

// EntryFunctionPayload invokes an on-chain entry function.
type EntryFunctionPayload struct {
	// Function is "<0x + 64 hex>::<module>::<function>".
	Function      string   `json:"function" yaml:"function"`
	TypeArguments []string `json:"type_arguments,omitempty" yaml:"type_arguments,omitempty"`
	Arguments     []any    `json:"arguments" yaml:"arguments"`
}

// IsValidFunctionID reports whether id has the exact shape
// 0x<64 hex>::<identifier>::<identifier>.
func IsValidFunctionID(id string) bool {
	return functionPattern.MatchString(id)
}

// IsValidAmount reports whether s is a string of decimal digits denoting a
// strictly positive integer. Leading zeros are allowed.
func IsValidAmount(s string) bool {
	return amountPattern.MatchString(s) && strings.Trim(s, "0") != ""
}

// IsValidAddress reports whether s is 0x followed by 64 hex digits.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ValidateTransferPayload accepts a TransferPayload, a pointer to one, or a
// map with "to" and "amount" string fields.
func ValidateTransferPayload(payload any) (bool, error) {
	p, err := asTransfer(payload)
	if err != nil {
		return false, err
	}
	if !IsValidAddress(p.To) {
		return false, rpcerr.InvalidArgument(ArgTo, fmt.Sprintf("invalid recipient address %q", p.To))
	}
	if !IsValidAmount(p.Amount) {
		return false, rpcerr.InvalidArgument(ArgAmount, fmt.Sprintf("amount must be a positive integer string, got %q", p.Amount))
	}
	return true, nil
}

// ValidateEntryFunctionPayload accepts an EntryFunctionPayload, a pointer
// to one, or a map with a "function" string and an optional "arguments"
// list.
func ValidateEntryFunctionPayload(payload any) (bool, error) {
	p, err := asEntryFunction(payload)
	if err != nil {
		return false, err
	}
	if !IsValidFunctionID(p.Function) {
		return false, rpcerr.InvalidArgument(ArgFunction, fmt.Sprintf("invalid function identifier %q", p.Function))
	}
	return true, nil
}

// ValidatePayload dispatches on the payload's shape. Maps are routed by
// their "type" tag, then by the presence of "function" or "amount".
func ValidatePayload(payload any) (bool, error) {
	switch p := payload.(type) {
	case TransferPayload, *TransferPayload:
		return ValidateTransferPayload(p)
	case EntryFunctionPayload, *EntryFunctionPayload:
		return ValidateEntryFunctionPayload(p)
	case map[string]any:
		switch kind := p[ArgType]; kind {
		case TypeTransfer:
			return ValidateTransferPayload(p)
		case TypeEntryFunction:
			return ValidateEntryFunctionPayload(p)
		case nil:
			if _, ok := p[ArgFunction]; ok {
				return ValidateEntryFunctionPayload(p)
			}
			if _, ok := p[ArgAmount]; ok {
				return ValidateTransferPayload(p)
			}
			return false, rpcerr.InvalidArgument(ArgType, "cannot determine payload type")
		default:
			return false, rpcerr.InvalidArgument(ArgType, fmt.Sprintf("unsupported payload type %v", kind))
		}
	default:
		return false, rpcerr.InvalidArgument(ArgType, fmt.Sprintf("unsupported payload %T", payload))
	}
}

func asTransfer(payload any) (TransferPayload, error) {
	switch p := payload.(type) {
	case TransferPayload:
		return p, nil
	case *TransferPayload:
		if p == nil {
			return TransferPayload{}, rpcerr.InvalidArgument(ArgType, "nil transfer payload")
		}
		return *p, nil
	case map[string]any:
		to, err := stringField(p, ArgTo)
		if err != nil {
			return TransferPayload{}, err
		}
		amount, err := stringField(p, ArgAmount)
		if err != nil {
			return TransferPayload{}, err
		}
		return TransferPayload{To: to, Amount: amount}, nil
	default:
		return TransferPayload{}, rpcerr.InvalidArgument(ArgType, fmt.Sprintf("expected transfer payload, got %T", payload))
	}
}

func asEntryFunction(payload any) (EntryFunctionPayload, error) {
	switch p := payload.(type) {
	case EntryFunctionPayload:
		return p, nil
	case *EntryFunctionPayload:
		if p == nil {
			return EntryFunctionPayload{}, rpcerr.InvalidArgument(ArgType, "nil entry function payload")
		}
		return *p, nil
	case map[string]any:
		fn, err := stringField(p, ArgFunction)
		if err != nil {
			return EntryFunctionPayload{}, err
		}
		out := EntryFunctionPayload{Function: fn}
		switch args := p[ArgArguments].(type) {
		case nil:
		case []any:
			out.Arguments = args
		default:
			return EntryFunctionPayload{}, rpcerr.InvalidArgument(ArgArguments, fmt.Sprintf("arguments must be a list, got %T", args))
		}
		return out, nil
	default:
		return EntryFunctionPayload{}, rpcerr.InvalidArgument(ArgType, fmt.Sprintf("expected entry function payload, got %T", payload))
	}
}

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", rpcerr.InvalidArgument(key, key+" is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", rpcerr.InvalidArgument(key, fmt.Sprintf("%s must be a string, got %T", key, v))
	}
	return s, nil
}
