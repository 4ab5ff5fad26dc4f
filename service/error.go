package service

import (
	"fmt"
)

// Verify Interface Compliance
var _ error = (*Err)(nil)

// Err defines service errors.
type Err struct {
	Code    int64  `json:"code"`
	Message string `json:"error"`
}

var (
	NoErr         = Err{Code: 0, Message: ""}
	BadRequestErr = Err{Code: 400, Message: "bad request"}
	InternalErr   = Err{Code: 500, Message: "internal error"}
)

func (e Err) Enrich(message string) Err {
	return Err{
		Code:    e.Code,
		Message: fmt.Sprintf("%s: %s", e.Message, message),
	}
}

func (e Err) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func InternalErrorWithError(err error) Err {
	return InternalErr.Enrich(err.Error())
}

func BadRequestWithError(err error) Err {
	return BadRequestErr.Enrich(err.Error())
}
