package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key returned in a transaction error.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse                 TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound              TransactionErrorKey = "AccountNotFound"
	TransactionErrorProgramAccountNotFound       TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorInsufficientFundsForFee      TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorDuplicateSignature           TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound            TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError             TransactionErrorKey = "InstructionError"
	TransactionErrorMissingSignatureForFee       TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorSignatureFailure             TransactionErrorKey = "SignatureFailure"
	TransactionErrorClusterMaintenance           TransactionErrorKey = "ClusterMaintenance"
	TransactionErrorWouldExceedMaxBlockCostLimit TransactionErrorKey = "WouldExceedMaxBlockCostLimit"
	TransactionErrorAlreadyProcessed             TransactionErrorKey = "AlreadyProcessed"
)

// InstructionErrorKey is the string keys returned in an instruction error.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorGenericError              InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID        InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorUninitializedAccount      InstructionErrorKey = "UninitializedAccount"
	InstructionErrorIllegalOwner              InstructionErrorKey = "IllegalOwner"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
	InstructionErrorMaxSeedLengthExceeded     InstructionErrorKey = "MaxSeedLengthExceeded"
	InstructionErrorInvalidSeeds              InstructionErrorKey = "InvalidSeeds"
)

// Custom codes returned by the system program.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/system_instruction.rs#L14
const (
	SystemErrorAccountAlreadyInUse CustomError = iota
	SystemErrorResultWithNegativeLamports
	SystemErrorInvalidProgramID
	SystemErrorInvalidAccountDataLength
	SystemErrorMaxSeedLengthExceeded
	SystemErrorAddressWithSeedMismatch
)

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch {
	case i.Err == nil:
		return ""
	case i.CustomError() != nil:
		return InstructionErrorCustom
	default:
		return InstructionErrorKey(i.Err.Error())
	}
}

// CustomError returns the program-specific code, if the instruction failed
// with one.
func (i InstructionError) CustomError() *CustomError {
	if ce, ok := i.Err.(CustomError); ok {
		return &ce
	}
	return nil
}

// rawValue is the JSON shape the RPC uses for the instruction error tuple.
func (i InstructionError) rawValue() []interface{} {
	if ce := i.CustomError(); ce != nil {
		return []interface{}{
			json.Number(strconv.Itoa(i.Index)),
			map[string]interface{}{string(InstructionErrorCustom): json.Number(strconv.Itoa(int(*ce)))},
		}
	}
	return []interface{}{json.Number(strconv.Itoa(i.Index)), i.Err.Error()}
}

func (i InstructionError) JSONString() string {
	b, _ := json.Marshal(i.rawValue())
	return string(b)
}

// TransactionError contains the transaction error details.
type TransactionError struct {
	key              TransactionErrorKey
	instructionError *InstructionError
	raw              interface{}
}

// ParseRPCError extracts the transaction error carried in the data of a
// jsonrpc.RPCError, as returned by simulation failures during send.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	txErr, ok := data["err"]
	if !ok || txErr == nil {
		return nil, nil
	}
	return ParseTransactionError(txErr)
}

// ParseTransactionError parses the JSON error returned from the "err" field
// in various RPC methods and fields.
//
// A partially understood error is still returned alongside the parse error,
// so callers can surface the raw value.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &TransactionError{key: TransactionErrorKey(t), raw: raw}, nil
	case map[string]interface{}:
		k, v, err := singleEntry(t)
		if err != nil {
			return &TransactionError{key: "unhandled transaction error", raw: raw}, errors.Wrap(err, "invalid transaction result")
		}

		if k != string(TransactionErrorInstructionError) {
			return &TransactionError{key: TransactionErrorKey(k), raw: raw}, nil
		}

		ixErr, err := parseInstructionError(v)
		if err != nil {
			return &TransactionError{key: "unhandled transaction error", raw: raw}, errors.Wrap(err, "failed to parse instruction error")
		}

		return &TransactionError{key: TransactionErrorInstructionError, instructionError: ixErr, raw: raw}, nil
	default:
		return nil, errors.Errorf("unhandled error type: %T", raw)
	}
}

func parseInstructionError(v interface{}) (*InstructionError, error) {
	tuple, ok := v.([]interface{})
	if !ok {
		return nil, errors.New("unexpected instruction error format")
	}
	if len(tuple) != 2 {
		return nil, errors.Errorf("expected InstructionError pair, got %d entries", len(tuple))
	}

	index, err := parseJSONNumber(tuple[0])
	if err != nil {
		return nil, err
	}

	e := &InstructionError{Index: index}
	switch detail := tuple[1].(type) {
	case string:
		e.Err = errors.New(detail)
	case map[string]interface{}:
		k, v, err := singleEntry(detail)
		if err != nil {
			return nil, errors.Wrap(err, "invalid instruction result")
		}

		if k != string(InstructionErrorCustom) {
			e.Err = errors.New(k)
			break
		}

		code, err := parseJSONNumber(v)
		if err != nil {
			e.Err = errors.New("unhandled CustomError")
			break
		}
		e.Err = CustomError(code)
	default:
		return nil, errors.Errorf("unexpected instruction error detail: %T", detail)
	}

	return e, nil
}

// singleEntry unpacks the one-key objects the RPC uses for enum variants.
func singleEntry(m map[string]interface{}) (string, interface{}, error) {
	if len(m) != 1 {
		return "", nil, errors.Errorf("expected a single entry, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", nil, nil
}

// NewTransactionError returns a transaction-level error with no instruction
// detail.
func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{key: key, raw: string(key)}
}

// TransactionErrorFromInstructionError wraps err the way the RPC reports an
// instruction failure.
func TransactionErrorFromInstructionError(err *InstructionError) (*TransactionError, error) {
	if err == nil || err.Err == nil {
		return nil, errors.New("instruction error is required")
	}

	return &TransactionError{
		key:              TransactionErrorInstructionError,
		instructionError: err,
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): err.rawValue(),
		},
	}, nil
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}
	return string(t.key)
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// IsAccountAlreadyInUse reports whether an allocation instruction failed
// because another actor created the account first.
func (t TransactionError) IsAccountAlreadyInUse() bool {
	if t.instructionError == nil {
		return false
	}

	ce := t.instructionError.CustomError()
	return ce != nil && *ce == SystemErrorAccountAlreadyInUse
}

// Retryable reports whether reassembling the transaction with a fresh
// blockhash and submitting again may succeed.
func (t TransactionError) Retryable() bool {
	switch t.key {
	case TransactionErrorBlockhashNotFound,
		TransactionErrorAccountInUse,
		TransactionErrorClusterMaintenance,
		TransactionErrorWouldExceedMaxBlockCostLimit:
		return true
	case TransactionErrorInstructionError:
		return t.IsAccountAlreadyInUse()
	}
	return false
}

func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

func parseJSONNumber(v interface{}) (int, error) {
	var (
		n   int64
		err error
	)

	switch t := v.(type) {
	case json.Number:
		n, err = t.Int64()
	case string:
		n, err = strconv.ParseInt(t, 10, 64)
	case float64:
		if t != float64(int64(t)) {
			err = errors.New("fractional value")
		}
		n = int64(t)
	default:
		err = errors.Errorf("unexpected type %T", v)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "non numeric value in InstructionError tuple: %v", v)
	}

	return int(n), nil
}
