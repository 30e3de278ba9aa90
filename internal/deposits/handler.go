package deposits

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/money"
)

// Handler exposes the balance addition endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a deposit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Response mirrors the account view after a deposit.
type Response struct {
	TransactionID string `json:"transaction_id"`
	Balance       string `json:"saldo"`
	BalanceCents  int64  `json:"saldo_cents"`
	Description   string `json:"description"`
	Reference     string `json:"reference"`
}

// AddBalance handles POST /contas/adicionar-saldo/:id?valor=&metodo=.
func (h *Handler) AddBalance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	amount, err := money.Parse(c.Query("valor"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	method, err := ParseMethod(c.Query("metodo"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.AddBalance(c.UserContext(), Input{
		OwnerID:    uid,
		AccountID:  c.Params("id"),
		Amount:     amount,
		Method:     method,
		ClientTxID: c.Get("X-Client-Tx-Id"),
	})
	if err != nil {
		if errors.Is(err, ErrDeclined) {
			return fiber.NewError(http.StatusPaymentRequired, err.Error())
		}
		return fiber.NewError(accounts.StatusFor(err), err.Error())
	}

	return c.Status(http.StatusCreated).JSON(Response{
		TransactionID: res.TransactionID,
		Balance:       money.Format(res.Balance),
		BalanceCents:  res.Balance,
		Description:   res.Description,
		Reference:     res.Reference,
	})
}
