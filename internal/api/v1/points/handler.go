package points

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/syy-ex/hair-makeover/internal/middleware"
	"github.com/syy-ex/hair-makeover/internal/services"
	"github.com/syy-ex/hair-makeover/internal/utils"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	ledger *services.LedgerService
}

func NewHandler(ledger *services.LedgerService) *Handler {
	return &Handler{ledger: ledger}
}

// GetBalance 查询当前用户积分余额
func (h *Handler) GetBalance(c *gin.Context) {
	user := middleware.CurrentUser(c)
	balance, err := h.ledger.Balance(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", BalanceResponse{Balance: balance}))
}

// GetLedger 查询当前用户积分流水，最新的在前
func (h *Handler) GetLedger(c *gin.Context) {
	user := middleware.CurrentUser(c)
	entries, err := h.ledger.Entries(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", toLedgerResponse(entries)))
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUserNotFound) {
		utils.AbortWithError(c, http.StatusNotFound, err.Error())
		return
	}
	logger.Log.Error("Failed to read points", zap.Error(err))
	utils.AbortWithError(c, http.StatusInternalServerError, "Failed to read points")
}
