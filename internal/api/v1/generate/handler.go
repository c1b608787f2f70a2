package generate

import (
	"context"
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
	generation *services.GenerationService
}

func NewHandler(generation *services.GenerationService) *Handler {
	return &Handler{generation: generation}
}

// Generate 换发型：扣除积分并调用生成接口
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user := middleware.CurrentUser(c)
	output, err := h.generation.Generate(c.Request.Context(), user.ID, services.GenerateRequest{
		UserImage:      req.UserImage,
		HairstyleImage: req.HairstyleImage,
		Prompt:         req.Prompt,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidImage):
			utils.AbortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInsufficientPoints):
			utils.AbortWithError(c, http.StatusPaymentRequired, "Insufficient points")
		case errors.Is(err, services.ErrNoOutput):
			utils.AbortWithError(c, http.StatusBadGateway, err.Error())
		case errors.Is(err, services.ErrGeneratorConfig):
			utils.AbortWithError(c, http.StatusInternalServerError, "Image generation is not configured")
		case errors.Is(err, services.ErrUserNotFound):
			utils.AbortWithError(c, http.StatusUnauthorized, "Please log in first")
		case errors.Is(err, context.Canceled):
			// client went away; nobody reads the answer
			c.Abort()
		default:
			logger.Log.Error("Image generation failed", zap.String("user_id", user.ID), zap.Error(err))
			utils.AbortWithError(c, http.StatusInternalServerError, "Image generation failed")
		}
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", GenerateResponse{Output: output}))
}
