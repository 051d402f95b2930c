package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"coop-loan-ledger/internal/domain/payment"
	"coop-loan-ledger/internal/usecase/ledger"
)

type LoanHandler struct {
	uc  *ledger.Usecase
	log *zap.Logger
}

func NewLoanHandler(uc *ledger.Usecase, log *zap.Logger) *LoanHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanHandler{uc: uc, log: log}
}

type submitLoanReq struct {
	MemberID       string   `json:"member_id"       validate:"required,hex32"`
	Amount         int64    `json:"amount"          validate:"required,gt=0"`
	Purpose        string   `json:"purpose"         validate:"max=500"`
	DurationMonths int      `json:"duration_months" validate:"required,gt=0,lte=360"`
	InterestRate   *float64 `json:"interest_rate"   validate:"omitempty,gte=0,lte=100,dec3"`
	Guarantor1ID   string   `json:"guarantor1_id"   validate:"required,hex32,nefield=MemberID"`
	Guarantor2ID   *string  `json:"guarantor2_id"   validate:"omitempty,hex32"`
}

type decisionReq struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Note     string `json:"note"     validate:"max=1000"`
}

// amount is checked by the ledger so zero and negative values surface as InvalidAmountError.
type paymentReq struct {
	Amount int64      `json:"amount"`
	Type   string     `json:"type"    validate:"required,oneof=monthly partial full"`
	Method string     `json:"method"  validate:"required,oneof=cash bank_transfer mobile_money"`
	Note   string     `json:"note"    validate:"max=1000"`
	PaidAt *time.Time `json:"paid_at"`
}

type balanceResp struct {
	LoanID      string `json:"loan_id"`
	Outstanding int64  `json:"outstanding_balance"`
}

// Submit: POST /loans. Members may only apply for themselves.
func (h *LoanHandler) Submit(c echo.Context) error {
	a, ok := actor(c, h.log)
	if !ok {
		return forbidden(c)
	}
	var req submitLoanReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	if !a.CanAccess(req.MemberID) {
		return forbidden(c)
	}

	dto, err := h.uc.Submit(c.Request().Context(), ledger.SubmitInput{
		MemberID:       req.MemberID,
		Amount:         req.Amount,
		Purpose:        req.Purpose,
		DurationMonths: req.DurationMonths,
		InterestRate:   req.InterestRate,
		Guarantor1ID:   req.Guarantor1ID,
		Guarantor2ID:   req.Guarantor2ID,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

// authorize loads the loan behind :loan_id and checks the caller may see it.
// ok=false means the response has already been written.
func (h *LoanHandler) authorize(c echo.Context) (*ledger.LoanDTO, bool, error) {
	a, ok := actor(c, h.log)
	if !ok {
		return nil, false, forbidden(c)
	}
	dto, err := h.uc.Get(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return nil, false, writeError(c, h.log, err)
	}
	if !a.CanAccess(dto.MemberID) {
		return nil, false, forbidden(c)
	}
	return dto, true, nil
}

// Get: GET /loans/:loan_id
func (h *LoanHandler) Get(c echo.Context) error {
	dto, ok, err := h.authorize(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, dto)
}

// Decide: POST /loans/:loan_id/decision (admin only)
func (h *LoanHandler) Decide(c echo.Context) error {
	a, ok := actor(c, h.log)
	if !ok || !a.IsAdmin() {
		return forbidden(c)
	}
	var req decisionReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Decide(c.Request().Context(), c.Param("loan_id"), req.Decision == "approve", ledger.DecisionInput{
		Note:      req.Note,
		DecidedBy: a.MemberID,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// RecordPayment: POST /loans/:loan_id/payments
func (h *LoanHandler) RecordPayment(c echo.Context) error {
	var req paymentReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, ok, err := h.authorize(c)
	if !ok {
		return err
	}
	a, _ := actor(c, h.log)

	in := ledger.PaymentInput{
		Amount:     req.Amount,
		Type:       payment.Type(req.Type),
		Method:     payment.Method(req.Method),
		Note:       req.Note,
		RecordedBy: a.MemberID,
	}
	if req.PaidAt != nil {
		in.PaidAt = *req.PaidAt
	}
	res, err := h.uc.RecordPayment(c.Request().Context(), dto.LoanID, in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Payments: GET /loans/:loan_id/payments
func (h *LoanHandler) Payments(c echo.Context) error {
	dto, ok, err := h.authorize(c)
	if !ok {
		return err
	}
	ps, err := h.uc.Payments(c.Request().Context(), dto.LoanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, ps)
}

// Balance: GET /loans/:loan_id/balance
func (h *LoanHandler) Balance(c echo.Context) error {
	dto, ok, err := h.authorize(c)
	if !ok {
		return err
	}
	bal, err := h.uc.OutstandingBalance(c.Request().Context(), dto.LoanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, balanceResp{LoanID: dto.LoanID, Outstanding: bal})
}

// Schedule: GET /loans/:loan_id/schedule
func (h *LoanHandler) Schedule(c echo.Context) error {
	dto, ok, err := h.authorize(c)
	if !ok {
		return err
	}
	s, err := h.uc.Schedule(c.Request().Context(), dto.LoanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// MemberLoans: GET /members/:member_id/loans
func (h *LoanHandler) MemberLoans(c echo.Context) error {
	a, ok := actor(c, h.log)
	memberID := c.Param("member_id")
	if !ok || !a.CanAccess(memberID) {
		return forbidden(c)
	}
	if !reHex32.MatchString(memberID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid member_id path param"})
	}
	out, err := h.uc.ApplicationsForMember(c.Request().Context(), memberID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}
