package rest

import (
	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/labstack/echo/v4"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Status int    `json:"status"`
	Code   int32  `json:"code"`
	Err    string `json:"error"`
}

func sendError(c echo.Context, status int, code errors.ERR, message string) error {
	return c.JSON(status, &errorResponse{
		Status: status,
		Code:   int32(code),
		Err:    message,
	})
}

// codeOf maps a response status back to the error code family that produces it.
func codeOf(status model.Status) errors.ERR {
	switch status {
	case model.StatusBadRequest:
		return errors.ERR_TX_INVALID
	case model.StatusNotFound:
		return errors.ERR_NOT_FOUND
	case model.StatusConflict:
		return errors.ERR_TX_CONFLICT
	case model.StatusUnavailable:
		return errors.ERR_SERVICE_UNAVAILABLE
	default:
		return errors.ERR_ERROR
	}
}
