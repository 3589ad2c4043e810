package jsonrpc

import (
	stderrors "errors"

	"github.com/creachadair/jrpc2"

	"capledger/errors"
)

// JSON-RPC error codes per error class.
const (
	codeInternal   jrpc2.Code = -32000
	codeValidation jrpc2.Code = -32001
	codeNotFound   jrpc2.Code = -32002
	codeOutOfRange jrpc2.Code = -32003
	codeCorruption jrpc2.Code = -32004
)

// toJRPC2Error maps a LedgerError onto a coded JSON-RPC error, keeping the
// string code as structured data for clients.
func toJRPC2Error(err error) error {
	var le *errors.LedgerError
	if !stderrors.As(err, &le) {
		return jrpc2.Errorf(codeInternal, "%s", err.Error())
	}

	code := codeInternal
	switch {
	case errors.IsValidation(err):
		code = codeValidation
	case errors.IsNotFound(err):
		code = codeNotFound
	case errors.IsOutOfRange(err):
		code = codeOutOfRange
	case errors.IsCorruption(err):
		code = codeCorruption
	}
	return jrpc2.Errorf(code, "%s", le.Message).WithData(le)
}

func invalidAmountError(amount string) error {
	return jrpc2.Errorf(codeValidation, "invalid amount %q", amount)
}
