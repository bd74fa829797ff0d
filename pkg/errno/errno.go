package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage returns a copy of the Errno carrying a more specific message
func (e Errno) WithMessage(msg string) Errno {
	e.Message = msg
	return e
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		// 业务层经常用 %w 包一层上下文，这里再解一次
		var e Errno
		if errors.As(err, &e) {
			return e.Code, err.Error()
		}
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrUnauthorized     = Errno{Code: 10005, Message: "Unauthorized"}
)

// Business Errors (20000+)
var (
	ErrInvalidPayoutRequest = Errno{Code: 20301, Message: "Invalid payout request"}
	ErrPayoutNotFound       = Errno{Code: 20302, Message: "Payout not found"}
	ErrPayoutConflict       = Errno{Code: 20303, Message: "Ongoing payment conflict on the platform"}
	ErrPayoutFailed         = Errno{Code: 20304, Message: "Payout execution failed"}
	ErrWalletMisconfigured  = Errno{Code: 20305, Message: "App wallet misconfigured"}
)
