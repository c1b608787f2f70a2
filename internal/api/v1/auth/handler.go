package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/syy-ex/hair-makeover/internal/middleware"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/services"
	"github.com/syy-ex/hair-makeover/internal/utils"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	auth         *services.AuthService
	secureCookie bool
}

// NewHandler creates the auth handler. secureCookie marks the session cookie
// Secure, which browsers require once the site is served over https.
func NewHandler(auth *services.AuthService, secureCookie bool) *Handler {
	return &Handler{auth: auth, secureCookie: secureCookie}
}

// RequestCode 发送注册验证码
func (h *Handler) RequestCode(c *gin.Context) {
	var input RequestCodeInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	err := h.auth.RequestCode(c.Request.Context(), input.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, utils.NewSuccessResponse("Verification code sent", nil))
	case errors.Is(err, services.ErrInvalidEmail):
		utils.AbortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUserAlreadyExists):
		utils.AbortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrCodeTooFrequent):
		utils.AbortWithError(c, http.StatusTooManyRequests, err.Error())
	default:
		logger.Log.Error("Failed to send verification code", zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to send verification code")
	}
}

// Register 使用验证码注册并登录
func (h *Handler) Register(c *gin.Context) {
	var input RegisterInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	user, session, err := h.auth.Register(c.Request.Context(), input.Email, input.Code, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidEmail),
			errors.Is(err, services.ErrWeakPassword),
			errors.Is(err, services.ErrInvalidCode):
			utils.AbortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserAlreadyExists):
			utils.AbortWithError(c, http.StatusConflict, err.Error())
		default:
			logger.Log.Error("Failed to register user", zap.Error(err))
			utils.AbortWithError(c, http.StatusInternalServerError, "Failed to register user due to an internal error")
		}
		return
	}

	h.startSession(c, session)
	c.JSON(http.StatusCreated, utils.NewSuccessResponse("User registered successfully", SessionResponse{
		User: toUserResponse(user, h.auth.IsAdmin(user)),
	}))
}

// Login 邮箱密码登录
func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	user, session, err := h.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrInvalidEmail) {
			utils.AbortWithError(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		logger.Log.Error("Failed to log in", zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to log in")
		return
	}

	h.startSession(c, session)
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Logged in successfully", SessionResponse{
		User: toUserResponse(user, h.auth.IsAdmin(user)),
	}))
}

// Logout 结束当前会话并清除 Cookie
func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		logger.Log.Error("Failed to log out", zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to log out")
		return
	}
	utils.ClearSessionCookie(c, h.secureCookie)
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Logged out successfully", nil))
}

// Me 返回当前登录用户，未登录时 user 为 null
func (h *Handler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusOK, utils.NewSuccessResponse("success", SessionResponse{}))
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", SessionResponse{
		User: toUserResponse(user, h.auth.IsAdmin(user)),
	}))
}

func (h *Handler) startSession(c *gin.Context, session *models.Session) {
	utils.SetSessionCookie(c, session.Token, session.ExpiresAt, h.secureCookie)
}
