package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
)

const grpcErrorDomain = "shardledger"

type Error struct {
	code       ERR
	message    string
	wrappedErr error
}

type Interface interface {
	Error() string
	Is(target error) bool
	As(target interface{}) bool
	Unwrap() error

	Code() ERR
	Message() string
	WrappedErr() error
}

func (e *Error) Error() string {
	// Error() can be called on wrapped errors, which can be nil, for example predefined errors
	if e == nil {
		return "<nil>"
	}

	if e.wrappedErr == nil {
		return fmt.Sprintf("Error: %s (error code: %d), Message: %v", e.code, e.code, e.message)
	}

	return fmt.Sprintf("Error: %s (error code: %d), Message: %v, Wrapped err: %v", e.code, e.code, e.message, e.wrappedErr)
}

// Is reports whether error codes match anywhere in the wrapped chain.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	targetError, ok := target.(*Error)
	if !ok {
		return strings.Contains(e.Error(), target.Error())
	}

	if e.code == targetError.code {
		return true
	}

	if e.wrappedErr == nil {
		return false
	}

	if ue, ok := e.wrappedErr.(*Error); ok {
		return ue.Is(target)
	}

	return false
}

func (e *Error) As(target interface{}) bool {
	if e == nil {
		return false
	}

	if targetErr, ok := target.(**Error); ok {
		*targetErr = e
		return true
	}

	if e.wrappedErr != nil {
		if v := reflect.ValueOf(e.wrappedErr); v.Kind() == reflect.Ptr && v.IsNil() {
			return false
		}

		return errors.As(e.wrappedErr, target)
	}

	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.wrappedErr
}

func (e *Error) Code() ERR {
	if e == nil {
		return ERR_UNKNOWN
	}

	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}

	return e.message
}

func (e *Error) WrappedErr() error {
	if e == nil {
		return nil
	}

	return e.wrappedErr
}

// New creates an *Error. When the last param is an error it is wrapped, the remaining
// params are used to format message.
func New(code ERR, message string, params ...interface{}) *Error {
	var wErr error

	if len(params) > 0 {
		lastParam := params[len(params)-1]

		switch err := lastParam.(type) {
		case *Error:
			if err != nil {
				wErr = err
			}

			params = params[:len(params)-1]
		case error:
			wErr = &Error{code: ERR_ERROR, message: err.Error()}
			params = params[:len(params)-1]
		}
	}

	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}

	if _, ok := ERR_name[int32(code)]; !ok {
		return &Error{
			code:       code,
			message:    "invalid error code",
			wrappedErr: wErr,
		}
	}

	return &Error{
		code:       code,
		message:    message,
		wrappedErr: wErr,
	}
}

// WrapGRPC converts err into a gRPC status error. Every level of an *Error chain is kept as an
// ErrorInfo detail so UnwrapGRPC can rebuild it on the other side.
func WrapGRPC(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		if _, isCustom := err.(*Error); !isCustom {
			return err
		}
	}

	castedErr, ok := err.(*Error)
	if !ok {
		castedErr = &Error{code: ERR_ERROR, message: err.Error()}
	}

	details := make([]protoadapt.MessageV1, 0, 2)

	var curr error = castedErr
	for curr != nil {
		if e, ok := curr.(*Error); ok {
			details = append(details, errorInfo(e.code, e.message))
			curr = e.wrappedErr

			continue
		}

		details = append(details, errorInfo(ERR_ERROR, curr.Error()))
		curr = nil
	}

	st, detailsErr := status.New(ErrorCodeToGRPCCode(castedErr.code), castedErr.message).WithDetails(details...)
	if detailsErr != nil {
		return &Error{
			code:       ERR_ERROR,
			message:    "error adding details to the error's gRPC status",
			wrappedErr: err,
		}
	}

	return st.Err()
}

func errorInfo(code ERR, message string) *errdetails.ErrorInfo {
	return &errdetails.ErrorInfo{
		Reason: code.String(),
		Domain: grpcErrorDomain,
		Metadata: map[string]string{
			"code":    strconv.Itoa(int(code)),
			"message": message,
		},
	}
}

// UnwrapGRPC rebuilds an *Error chain from a status error created by WrapGRPC.
func UnwrapGRPC(err error) *Error {
	if err == nil {
		return nil
	}

	if castedErr, ok := err.(*Error); ok {
		return castedErr
	}

	st, ok := status.FromError(err)
	if !ok {
		return &Error{
			code:       ERR_ERROR,
			message:    "error unwrapping gRPC details",
			wrappedErr: err,
		}
	}

	var prevErr, currErr *Error

	details := st.Details()
	for i := len(details) - 1; i >= 0; i-- {
		info, ok := details[i].(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != grpcErrorDomain {
			continue
		}

		code, convErr := strconv.Atoi(info.GetMetadata()["code"])
		if convErr != nil {
			code = int(ParseERR(info.GetReason()))
		}

		currErr = &Error{
			code:    ERR(code),
			message: info.GetMetadata()["message"],
		}

		if prevErr != nil {
			currErr.wrappedErr = prevErr
		}

		prevErr = currErr
	}

	if currErr == nil {
		return &Error{
			code:    grpcCodeToErrorCode(st.Code()),
			message: st.Message(),
		}
	}

	return currErr
}

// ErrorCodeToGRPCCode maps application error codes to gRPC status codes.
func ErrorCodeToGRPCCode(code ERR) codes.Code {
	switch code {
	case ERR_UNKNOWN:
		return codes.Unknown
	case ERR_INVALID_ARGUMENT, ERR_TX_INVALID, ERR_INSUFFICIENT_FUNDS:
		return codes.InvalidArgument
	case ERR_NOT_FOUND, ERR_TX_NOT_FOUND:
		return codes.NotFound
	case ERR_TX_ALREADY_EXISTS, ERR_TX_CONFLICT, ERR_SPENT:
		return codes.AlreadyExists
	case ERR_SERVICE_UNAVAILABLE, ERR_SHARD_UNAVAILABLE:
		return codes.Unavailable
	case ERR_TIMEOUT:
		return codes.DeadlineExceeded
	case ERR_CONTEXT_CANCELED:
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func grpcCodeToErrorCode(code codes.Code) ERR {
	switch code {
	case codes.InvalidArgument:
		return ERR_INVALID_ARGUMENT
	case codes.NotFound:
		return ERR_NOT_FOUND
	case codes.Unavailable:
		return ERR_SERVICE_UNAVAILABLE
	case codes.DeadlineExceeded:
		return ERR_TIMEOUT
	case codes.Canceled:
		return ERR_CONTEXT_CANCELED
	case codes.Unknown:
		return ERR_UNKNOWN
	default:
		return ERR_ERROR
	}
}

func Join(errs ...error) error {
	var messages []string

	for _, err := range errs {
		if err != nil {
			messages = append(messages, err.Error())
		}
	}

	if len(messages) == 0 {
		return nil
	}

	return New(ERR_ERROR, strings.Join(messages, ", "))
}

func Is(err, target error) bool {
	if isGRPCWrappedError(err) {
		err = UnwrapGRPC(err)
	}

	return errors.Is(err, target)
}

func As(err error, target any) bool {
	if isGRPCWrappedError(err) {
		err = UnwrapGRPC(err)
	}

	if castedErr, ok := err.(*Error); ok {
		if castedErr.As(target) {
			return true
		}

		if castedErr.wrappedErr != nil {
			return errors.As(castedErr.wrappedErr, target)
		}
	}

	return errors.As(err, target)
}

func isGRPCWrappedError(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(*Error); ok {
		return false
	}

	_, ok := status.FromError(err)

	return ok
}
