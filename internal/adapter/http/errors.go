package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"coop-loan-ledger/internal/domain/loan"
)

// statusFor maps the ledger's error taxonomy onto HTTP.
func statusFor(err error) int {
	var (
		termErr       *loan.InvalidTermError
		amountErr     *loan.InvalidAmountError
		validErr      *loan.ValidationError
		ineligibleErr *loan.IneligibleError
		transErr      *loan.InvalidTransitionError
		lookupErr     *loan.LookupError
		persistErr    *loan.PersistenceError
	)
	switch {
	case errors.As(err, &validErr), errors.As(err, &termErr), errors.As(err, &amountErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ineligibleErr), errors.As(err, &transErr):
		return http.StatusConflict
	case errors.Is(err, loan.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &lookupErr), errors.As(err, &persistErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, log *zap.Logger, err error) error {
	code := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var (
		ineligibleErr *loan.IneligibleError
		validErr      *loan.ValidationError
	)
	switch {
	case errors.As(err, &ineligibleErr):
		resp.Error = "member is not eligible"
		resp.Reason = ineligibleErr.Reason
		resp.MaxEligibleAmount = ineligibleErr.MaxEligibleAmount
	case errors.As(err, &validErr):
		resp.Error = "validation failed"
		resp.Details = []FieldError{{Field: validErr.Field, Message: validErr.Message}}
	case code == http.StatusNotFound:
		resp.Error = "not found"
	case code == http.StatusServiceUnavailable:
		// storage details stay in the logs
		resp.Error = "storage unavailable, retry later"
	case code == http.StatusInternalServerError:
		resp.Error = "internal error"
	}
	if code >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			zap.String("route", c.Path()),
			zap.Int("status", code),
			zap.Error(err))
	}
	return c.JSON(code, resp)
}

// bindAndValidate answers 400 on a malformed body and 422 on a failed validation.
// ok=false means the response has already been written.
func bindAndValidate(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}
