// internal/handlers/purchase.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mixtapefm/mixtape-backend/internal/services"
	"github.com/mixtapefm/mixtape-backend/internal/utils"
)

type PurchaseHandler struct {
	settlementService *services.SettlementService
}

func NewPurchaseHandler(settlementService *services.SettlementService) *PurchaseHandler {
	return &PurchaseHandler{
		settlementService: settlementService,
	}
}

type ConfirmPurchaseRequest struct {
	BuyerAddress  string `json:"buyerAddress" validate:"required,eth_addr"`
	PaymentTxHash string `json:"paymentTxHash" validate:"required,tx_hash"`
}

type ConfirmPurchaseResponse struct {
	Success       bool   `json:"success"`
	MintTxHash    string `json:"mintTxHash"`
	AlreadyMinted bool   `json:"alreadyMinted,omitempty"`
}

type pipelineError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// POST /v1/purchase/confirm
func (h *PurchaseHandler) ConfirmPurchase(c *gin.Context) {
	var req ConfirmPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pipelineError{
			Error: "Missing required parameters: buyerAddress and paymentTxHash",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		c.JSON(http.StatusBadRequest, pipelineError{
			Error: validationErrors[0].Message,
			Code:  "INVALID_REQUEST",
		})
		return
	}

	result, err := h.settlementService.ConfirmPurchase(c.Request.Context(), req.BuyerAddress, req.PaymentTxHash)
	if err != nil {
		status, code, message := classifySettlementError(err)
		c.JSON(status, pipelineError{Error: message, Code: code})
		return
	}

	c.JSON(http.StatusOK, ConfirmPurchaseResponse{
		Success:       true,
		MintTxHash:    result.MintTxHash,
		AlreadyMinted: result.AlreadyMinted,
	})
}

// classifySettlementError maps pipeline errors to one response each. Only
// the mapped message crosses the boundary; raw detail stays in the logs.
func classifySettlementError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, services.ErrPaymentNotFound):
		return http.StatusBadRequest, "PAYMENT_NOT_FOUND",
			"Payment transaction not found or not yet confirmed; retry once it confirms"
	case errors.Is(err, services.ErrPaymentReverted),
		errors.Is(err, services.ErrTransferNotFound),
		errors.Is(err, services.ErrWrongRecipient),
		errors.Is(err, services.ErrAmountMismatch):
		return http.StatusBadRequest, "PAYMENT_INVALID", err.Error()
	case errors.Is(err, services.ErrSettlementInProgress):
		return http.StatusConflict, "SETTLEMENT_IN_PROGRESS",
			"Settlement already in progress for this transaction"
	case errors.Is(err, services.ErrMintFailure):
		return http.StatusBadGateway, "MINT_FAILURE",
			"Payment verified but mint did not complete; please retry"
	default:
		logrus.WithError(err).Error("Unclassified settlement error")
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
