package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"ledgercore/internal/models"
	"ledgercore/internal/services/ledger"
)

// BalanceHandler exposes the ledger engine over HTTP. Handlers are thin
// DTO mappings; every business outcome is in the service's Result.
type BalanceHandler struct {
	service ledger.Service
}

func NewBalanceHandler(service ledger.Service) *BalanceHandler {
	return &BalanceHandler{service: service}
}

type updateBalanceRequest struct {
	Kind        string                 `json:"kind"`
	UserID      uint                   `json:"user_id"`
	Asset       string                 `json:"asset"`
	Amount      string                 `json:"amount"`
	OperationID string                 `json:"operation_id"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (h *BalanceHandler) UpdateBalance(c *fiber.Ctx) error {
	var req updateBalanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	}

	result := h.service.UpdateBalance(c.Context(), ledger.Request{
		Kind:        ledger.Kind(req.Kind),
		UserID:      req.UserID,
		Asset:       req.Asset,
		Amount:      amount,
		OperationID: req.OperationID,
		Metadata:    models.NewJSON(req.Metadata),
	})
	return c.JSON(result)
}

type tipRequest struct {
	FromUserID  uint   `json:"from_user_id"`
	ToUserID    uint   `json:"to_user_id"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	OperationID string `json:"operation_id"`
}

func (h *BalanceHandler) Tip(c *fiber.Ctx) error {
	var req tipRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	}

	result := h.service.Tip(c.Context(), ledger.TipRequest{
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		Asset:       req.Asset,
		Amount:      amount,
		OperationID: req.OperationID,
	})
	return c.JSON(result)
}

type vaultRequest struct {
	UserID      uint   `json:"user_id"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Direction   string `json:"direction"`
	OperationID string `json:"operation_id"`
}

func (h *BalanceHandler) VaultTransfer(c *fiber.Ctx) error {
	var req vaultRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	}

	result := h.service.VaultTransfer(c.Context(), ledger.VaultRequest{
		UserID:      req.UserID,
		Asset:       req.Asset,
		Amount:      amount,
		Direction:   ledger.VaultDirection(req.Direction),
		OperationID: req.OperationID,
	})
	return c.JSON(result)
}

type claimRequest struct {
	UserID      uint              `json:"user_id"`
	Claims      map[string]string `json:"claims"` // asset -> amount
	OperationID string            `json:"operation_id"`
}

func (h *BalanceHandler) ClaimCommissions(c *fiber.Ctx) error {
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	claims := make([]ledger.Claim, 0, len(req.Claims))
	for asset, raw := range req.Claims {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount for " + asset})
		}
		claims = append(claims, ledger.Claim{Asset: asset, Amount: amount})
	}

	results := h.service.ClaimCommissions(c.Context(), ledger.ClaimRequest{
		UserID:      req.UserID,
		Claims:      claims,
		OperationID: req.OperationID,
	})
	return c.JSON(fiber.Map{"results": results})
}

func (h *BalanceHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	asset := c.Params("asset")

	balance, err := h.service.GetBalance(c.Context(), uint(userID), asset)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"user_id": userID, "asset": asset, "balance": balance})
}
