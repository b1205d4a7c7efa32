package server

import (
	"errors"
	"net/http"

	"github.com/fcg/usuarios/core"
)

const (
	ErrCodeGeneric = "XXXX"
)

// Web Endpoint's Resp
type Resp struct {
	ErrorCode string `json:"errorCode,omitempty"`
	Msg       string `json:"msg,omitempty"`
	Error     bool   `json:"error"`
	Data      any    `json:"data,omitempty"`
}

// Generic version of Resp
type GnResp[T any] struct {
	ErrorCode string `json:"errorCode"`
	Msg       string `json:"msg"`
	Error     bool   `json:"error"`
	Data      T      `json:"data"`
}

/*
Wrap with a response object, the http status is derived from the error code.

	ILLEGAL_ARGUMENT -> 400
	NOT_FOUND        -> 404
	any other code   -> 409
	not an *AppErr   -> 500
*/
func WrapResp(rail core.Rail, data any, e error) (int, Resp) {
	if e != nil {
		var me *core.AppErr
		if errors.As(e, &me) && me.HasCode() {
			rail.Infof("Returned error, code: '%v', msg: '%v', internalMsg: '%v'", me.Code(), me.Msg(), me.InternalMsg())
			return statusOf(me.Code()), ErrorRespWCode(me.Code(), me.Msg())
		}

		// not a coded AppErr, just return some generic msg
		rail.Errorf("Unknown error, %v", e)
		return http.StatusInternalServerError, ErrorResp("Unknown system error, please try again later")
	}

	if v, ok := data.(Resp); ok {
		return http.StatusOK, v
	}
	return http.StatusOK, OkRespWData(data)
}

func statusOf(code string) int {
	switch code {
	case core.ErrCodeIllegalArgument:
		return http.StatusBadRequest
	case core.ErrCodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusConflict
}

// Build error Resp
func ErrorResp(msg string) Resp {
	return Resp{
		ErrorCode: ErrCodeGeneric,
		Msg:       msg,
		Error:     true,
	}
}

// Build error Resp
func ErrorRespWCode(code string, msg string) Resp {
	return Resp{
		ErrorCode: code,
		Msg:       msg,
		Error:     true,
	}
}

// Build OK Resp
func OkResp() Resp {
	return Resp{
		Error: false,
	}
}

// Build OK Resp with data
func OkRespWData(data any) Resp {
	if data == nil {
		return OkResp()
	}
	return Resp{
		Data:  data,
		Error: false,
	}
}
