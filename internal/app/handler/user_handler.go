package handler

import (
	"net/http"

	"mlbilling/internal/app/account"
	"mlbilling/internal/app/dto"

	"github.com/gin-gonic/gin"
)

// GetMe returns the current user.
// @Summary Current user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SuccessResponse{data=dto.UserResponse}
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/users/me [get]
func (h *APIHandler) GetMe(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.Accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, "", dto.NewUserResponse(user))
}

// UpdateMe changes the current user's email, name or password.
// @Summary Update current user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateUserRequest true "Fields to change"
// @Success 200 {object} dto.SuccessResponse{data=dto.UserResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/users/me [put]
func (h *APIHandler) UpdateMe(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var request dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, bindError(err))
		return
	}

	user, err := h.Accounts.Update(c.Request.Context(), userID, account.Update{
		Email:    request.Email,
		FullName: request.FullName,
		Password: request.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, "profile updated", dto.NewUserResponse(user))
}

// TopUpCredits adds credits to the current user's balance.
// @Summary Top up credits
// @Description The amount is rounded to one decimal place
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.TopUpRequest true "Amount"
// @Success 200 {object} dto.SuccessResponse{data=dto.BalanceResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/users/me/credits [put]
func (h *APIHandler) TopUpCredits(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var request dto.TopUpRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, bindError(err))
		return
	}

	balance, err := h.Accounts.TopUp(c.Request.Context(), userID, request.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, "credits added", dto.BalanceResponse{Credits: balance})
}

// GetCreditHistory lists the current user's credit operations.
// @Summary Credit history
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SuccessResponse{data=[]dto.CreditOperationResponse}
// @Router /api/users/me/credits [get]
func (h *APIHandler) GetCreditHistory(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ops, err := h.Accounts.History(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.CreditOperationResponse, len(ops))
	for i, op := range ops {
		out[i] = dto.NewCreditOperationResponse(op)
	}
	successResponse(c, http.StatusOK, "", out)
}
