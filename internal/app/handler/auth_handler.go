package handler

import (
	"fmt"
	"net/http"
	"time"

	"mlbilling/internal/app/account"
	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/dto"
	"mlbilling/internal/app/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	Accounts *account.Service
	Auth     *middleware.AuthMiddleware
}

func NewAuthHandler(accounts *account.Service, auth *middleware.AuthMiddleware) *AuthHandler {
	return &AuthHandler{
		Accounts: accounts,
		Auth:     auth,
	}
}

func (h *AuthHandler) login(c *gin.Context, status int, message string, userID uint) {
	user, err := h.Accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.Auth.IssueToken(user.ID, user.Role, time.Now())
	if err != nil {
		respondError(c, apperr.Wrap(apperr.ErrUnauthorized, err))
		return
	}

	successResponse(c, status, message, dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.Auth.Config.JWT.ExpiresIn.Seconds()),
		User:        dto.NewUserResponse(user),
	})
}

// RegisterUser creates a user and signs them in.
// @Summary Register
// @Description Creates a user with an empty balance and returns an access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration data"
// @Success 201 {object} dto.SuccessResponse{data=dto.LoginResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var request dto.RegisterRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, bindError(err))
		return
	}

	user, err := h.Accounts.Register(c.Request.Context(), request.Email, request.Password, request.FullName)
	if err != nil {
		respondError(c, err)
		return
	}
	h.login(c, http.StatusCreated, "user registered", user.ID)
}

// LoginUser exchanges credentials for an access token.
// @Summary Log in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.SuccessResponse{data=dto.LoginResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) LoginUser(c *gin.Context) {
	var request dto.LoginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, bindError(err))
		return
	}

	user, err := h.Accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.login(c, http.StatusOK, "user logged in", user.ID)
}

// LogoutUser revokes the token the request was made with.
// @Summary Log out
// @Description Blacklists the current token until it expires
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) LogoutUser(c *gin.Context) {
	tokenString := middleware.BearerToken(c)
	claims, err := h.Auth.ParseToken(tokenString)
	if err != nil {
		respondError(c, fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized))
		return
	}

	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl > 0 {
		if err := h.Auth.Blacklist.WriteJWTToBlacklist(c.Request.Context(), tokenString, ttl); err != nil {
			logrus.WithError(err).Error("failed to blacklist token")
			errorResponse(c, http.StatusInternalServerError, "could not revoke token")
			return
		}
	}

	successResponse(c, http.StatusOK, "user logged out", nil)
}
