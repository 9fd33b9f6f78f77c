package server

import (
	"errors"
	"net/http"

	"photokiosk/internal/acquire"
	"photokiosk/internal/auth"
	"photokiosk/internal/kiosk"
	"photokiosk/internal/mediacache"
	"photokiosk/internal/picker"
)

type errorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	Reauthorize bool   `json:"reauthorize,omitempty"`
}

func classify(err error) (int, errorResponse) {
	resp := errorResponse{Error: err.Error()}
	var sessionErr *picker.SessionError
	switch {
	case auth.IsAuthError(err):
		resp.Code = "reauthorize"
		resp.Reauthorize = true
		return http.StatusUnauthorized, resp
	case errors.Is(err, acquire.ErrEmptySelection):
		resp.Code = "empty_selection"
		return http.StatusConflict, resp
	case errors.Is(err, picker.ErrNoSession):
		resp.Code = "no_session"
		return http.StatusConflict, resp
	case errors.Is(err, kiosk.ErrBusy):
		resp.Code = "busy"
		return http.StatusConflict, resp
	case errors.Is(err, mediacache.ErrNotFound), errors.Is(err, mediacache.ErrKindMismatch):
		resp.Code = "not_found"
		return http.StatusNotFound, resp
	case errors.Is(err, acquire.ErrPersistFailure):
		resp.Code = "persist_failure"
		return http.StatusInternalServerError, resp
	case auth.IsTransient(err):
		resp.Code = "token_endpoint_unavailable"
		return http.StatusServiceUnavailable, resp
	case errors.As(err, &sessionErr):
		resp.Code = "session_unavailable"
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, acquire.ErrNoneDownloaded), auth.StatusCode(err) != 0:
		resp.Code = "upstream"
		return http.StatusBadGateway, resp
	}
	resp.Code = "internal"
	return http.StatusInternalServerError, resp
}
