package accounts

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/ledger"
	"github.com/frizbank/frizbank/internal/money"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Response is the JSON view of an account with its balance.
type Response struct {
	ID           string                `json:"id"`
	OwnerID      string                `json:"owner_id"`
	Currency     string                `json:"currency"`
	Status       string                `json:"status"`
	Balance      string                `json:"saldo"`
	BalanceCents int64                 `json:"saldo_cents"`
	CreatedAt    time.Time             `json:"created_at"`
	Transactions []TransactionResponse `json:"transacoes,omitempty"`
	// Extrato is the statement in the legacy "[+100.00]: description;" form.
	Extrato string `json:"extrato,omitempty"`
}

// TransactionResponse is one statement line.
type TransactionResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	AmountCents  int64     `json:"amount_cents"`
	Description  string    `json:"description"`
	Counterparty string    `json:"counterparty,omitempty"`
	Date         time.Time `json:"date"`
}

// ToTransactionResponses renders ledger lines in the order given.
func ToTransactionResponses(lines []ledger.StatementLine) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, TransactionResponse{
			ID:           l.TransactionID,
			Type:         l.Type,
			Amount:       money.Format(l.Amount),
			AmountCents:  l.Amount,
			Description:  l.Description,
			Counterparty: l.Counterparty,
			Date:         l.CreatedAt,
		})
	}
	return out
}

// FormatExtrato renders lines as "[+amount]: description;" entries.
func FormatExtrato(lines []ledger.StatementLine) string {
	var b strings.Builder
	for _, l := range lines {
		sign := "+"
		if l.Amount < 0 {
			sign = ""
		}
		fmt.Fprintf(&b, "[%s%s]: %s;", sign, money.Format(l.Amount), l.Description)
	}
	return b.String()
}

func toResponse(a Account, balance int64, lines []ledger.StatementLine) Response {
	resp := Response{
		ID:           a.ID,
		OwnerID:      a.OwnerID,
		Currency:     a.Currency,
		Status:       a.Status,
		Balance:      money.Format(balance),
		BalanceCents: balance,
		CreatedAt:    a.CreatedAt,
	}
	if lines != nil {
		resp.Transactions = ToTransactionResponses(lines)
		resp.Extrato = FormatExtrato(lines)
	}
	return resp
}

// Create provisions an account for the authenticated owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	account, err := h.service.Create(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(account, 0, nil))
}

// ByOwner handles GET /contas/usuario/:userId.
func (h *Handler) ByOwner(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if c.Params("userId") != uid {
		return fiber.NewError(http.StatusForbidden, ErrForbidden.Error())
	}
	account, err := h.service.GetByOwner(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	bal, err := h.service.Balance(c.UserContext(), account.ID)
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.JSON(toResponse(account, bal.Amount, nil))
}

// Get handles GET /contas/:id with the latest transactions.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	account, err := h.service.Owned(c.UserContext(), c.Params("id"), uid)
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	st, err := h.service.Statement(c.UserContext(), account.ID, RecentLimit)
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	lines := st.Lines
	if lines == nil {
		lines = []ledger.StatementLine{}
	}
	return c.JSON(toResponse(account, st.Balance.Amount, lines))
}

// StatusFor maps account and ledger errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAccountExists), errors.Is(err, ledger.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, money.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
