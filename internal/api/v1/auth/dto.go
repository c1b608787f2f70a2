package auth

import "github.com/syy-ex/hair-makeover/internal/models"

type RequestCodeInput struct {
	Email string `json:"email" binding:"required,email"`
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	PointsBalance int64  `json:"pointsBalance"`
	IsAdmin       bool   `json:"isAdmin"`
}

// SessionResponse wraps the current user; User is nil for anonymous callers.
type SessionResponse struct {
	User *UserResponse `json:"user"`
}

func toUserResponse(u *models.User, isAdmin bool) *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		PointsBalance: u.PointsBalance,
		IsAdmin:       isAdmin,
	}
}
