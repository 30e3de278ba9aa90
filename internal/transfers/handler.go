package transfers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/money"
)

// Handler exposes the send endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Response describes a completed send.
type Response struct {
	TransactionID string `json:"transaction_id"`
	Balance       string `json:"saldo"`
	BalanceCents  int64  `json:"saldo_cents"`
	Internal      bool   `json:"internal"`
	Description   string `json:"description"`
}

// Send handles POST /contas/enviar/:id?idDestino=&valor=.
func (h *Handler) Send(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	amount, err := money.Parse(c.Query("valor"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Send(c.UserContext(), Input{
		OwnerID:     uid,
		AccountID:   c.Params("id"),
		Destination: c.Query("idDestino"),
		Amount:      amount,
		ClientTxID:  c.Get("X-Client-Tx-Id"),
	})
	if err != nil {
		if errors.Is(err, ErrMissingDestination) || errors.Is(err, ErrSameAccount) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(accounts.StatusFor(err), err.Error())
	}

	return c.Status(http.StatusCreated).JSON(Response{
		TransactionID: res.TransactionID,
		Balance:       money.Format(res.Balance),
		BalanceCents:  res.Balance,
		Internal:      res.Internal,
		Description:   res.Description,
	})
}
