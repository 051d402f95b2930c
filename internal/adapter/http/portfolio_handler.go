package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"coop-loan-ledger/internal/usecase/portfolio"
)

type PortfolioHandler struct {
	uc  *portfolio.Usecase
	log *zap.Logger
}

func NewPortfolioHandler(uc *portfolio.Usecase, log *zap.Logger) *PortfolioHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PortfolioHandler{uc: uc, log: log}
}

// Summary: GET /portfolio/summary (admin only)
func (h *PortfolioHandler) Summary(c echo.Context) error {
	a, ok := actor(c, h.log)
	if !ok || !a.IsAdmin() {
		return forbidden(c)
	}
	s, err := h.uc.GetSummary(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, s)
}
