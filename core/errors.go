package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind classifies engine failures. Every kind is fatal to the
// statement that raised it, never to the channel.
type ErrorKind int

const (
	SyntaxError ErrorKind = iota + 1
	BindingError
	ConstraintError
	FunctionResolutionError
	TransactionError
	StorageError
	ConnectionError
	CursorError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case BindingError:
		return "BindingError"
	case ConstraintError:
		return "ConstraintError"
	case FunctionResolutionError:
		return "FunctionResolutionError"
	case TransactionError:
		return "TransactionError"
	case StorageError:
		return "StorageError"
	case ConnectionError:
		return "ConnectionError"
	case CursorError:
		return "CursorError"
	default:
		return "Error"
	}
}

const (
	CodeUnexpectedToken    = 1001
	CodeUnexpectedEnd      = 1002
	CodeUnterminatedString = 1003
	CodeInvalidLiteral     = 1004
	CodeUnknownStatement   = 1005
	CodeUnknownType        = 1006

	CodeTableNotFound     = 2001
	CodeColumnNotFound    = 2002
	CodeVariableNotFound  = 2003
	CodeAliasNotFound     = 2004
	CodeAmbiguousColumn   = 2005
	CodeTableExists       = 2006
	CodeAliasExists       = 2007
	CodeColumnCount       = 2008
	CodeParameterNotFound = 2009
	CodeIndexNotFound     = 2010
	CodeIndexExists       = 2011
	CodeInvalidGrouping   = 2012
	CodeDuplicateColumn   = 2013

	CodeNotNull          = 3001
	CodeDuplicateKey     = 3002
	CodeUniqueViolation  = 3003
	CodeTypeMismatch     = 3004
	CodeDivisionByZero   = 3005
	CodeValueTooLong     = 3006
	CodeInvalidIdentity  = 3007
	CodeNumericOverflow  = 3008
	CodeInvalidArgument  = 3009
	CodeCardinality      = 3010
	CodeBadPrimaryKey    = 3011

	CodeFunctionNotFound = 4001
	CodeTargetNotFound   = 4002
	CodeWrongArity       = 4003
	CodeFunctionFailed   = 4004

	CodeNoTransaction     = 5001
	CodeTransactionActive = 5002
	CodeChannelClosed     = 5003
	CodeCancelled         = 5004

	CodeStorageIO = 6001

	CodeDatabaseNotFound  = 7001
	CodeAccessDenied      = 7002
	CodeInvalidProperties = 7003
	CodeDatabaseClosed    = 7004

	CodeCursorClosed      = 8001
	CodeCursorInvalidated = 8002
)

// Error is the single user-facing failure type. Its text always has the
// shape "<code> <message>".
type Error struct {
	Code    int
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConstraint)
// works regardless of the code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	if other.Code != 0 && e.Code != 0 && other.Code != e.Code {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrSyntax      = &Error{Kind: SyntaxError}
	ErrBinding     = &Error{Kind: BindingError}
	ErrConstraint  = &Error{Kind: ConstraintError}
	ErrFunction    = &Error{Kind: FunctionResolutionError}
	ErrTransaction = &Error{Kind: TransactionError}
	ErrStorage     = &Error{Kind: StorageError}
	ErrConnection  = &Error{Kind: ConnectionError}
	ErrCursor      = &Error{Kind: CursorError}
)

func newError(kind ErrorKind, code int, format string, args ...any) *Error {
	return &Error{Code: code, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewSyntaxError(code int, format string, args ...any) *Error {
	return newError(SyntaxError, code, format, args...)
}

func NewBindingError(code int, format string, args ...any) *Error {
	return newError(BindingError, code, format, args...)
}

func NewConstraintError(code int, format string, args ...any) *Error {
	return newError(ConstraintError, code, format, args...)
}

func NewFunctionError(code int, format string, args ...any) *Error {
	return newError(FunctionResolutionError, code, format, args...)
}

func NewTransactionError(code int, format string, args ...any) *Error {
	return newError(TransactionError, code, format, args...)
}

func NewConnectionError(code int, format string, args ...any) *Error {
	return newError(ConnectionError, code, format, args...)
}

func NewCursorError(code int, format string, args ...any) *Error {
	return newError(CursorError, code, format, args...)
}

// WrapStorage turns a backing-store failure into a StorageError.
func WrapStorage(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return err
	}
	e := newError(StorageError, CodeStorageIO, format, args...)
	e.Err = err
	return e
}

// ParseError splits an error text of the form "<code> <message>" back into
// its parts. ok is false when the text does not start with a code.
func ParseError(text string) (code int, message string, ok bool) {
	head, rest, found := strings.Cut(text, " ")
	if !found {
		head = text
	}
	code, err := strconv.Atoi(head)
	if err != nil {
		return 0, text, false
	}
	return code, rest, true
}

// KindOf reports the ErrorKind of err, or 0 for foreign errors.
func KindOf(err error) ErrorKind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return 0
}
