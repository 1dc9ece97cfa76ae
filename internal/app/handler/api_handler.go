package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"mlbilling/internal/app/account"
	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/catalog"
	"mlbilling/internal/app/dto"
	"mlbilling/internal/app/middleware"
	"mlbilling/internal/app/prediction"
	"mlbilling/internal/app/repository"
	"mlbilling/internal/app/role"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MaxUploadBytes bounds model artifacts and prediction tables.
const MaxUploadBytes = 100 << 20

// APIHandler serves the REST API.
type APIHandler struct {
	Catalog     *catalog.Service
	Predictions *prediction.Service
	Accounts    *account.Service
	AuthHandler *AuthHandler
}

func NewAPIHandler(c *catalog.Service, p *prediction.Service, a *account.Service, authHandler *AuthHandler) *APIHandler {
	return &APIHandler{
		Catalog:     c,
		Predictions: p,
		Accounts:    a,
		AuthHandler: authHandler,
	}
}

// ============ Helpers ============

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{
		Status:  "fail",
		Message: message,
	})
}

func successResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := dto.SuccessResponse{
		Status:  "success",
		Message: message,
	}
	if data != nil {
		response.Data = data
	}
	c.JSON(statusCode, response)
}

// respondError writes err with the status of its kind. Details of server
// side failures are logged, not returned.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status < http.StatusInternalServerError {
		errorResponse(c, status, strings.ReplaceAll(err.Error(), "mlbilling: ", ""))
		return
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("request failed")

	message := "internal server error"
	if errors.Is(err, apperr.ErrInferenceError) {
		message = "inference failed"
	}
	errorResponse(c, status, message)
}

func currentUser(c *gin.Context) (uint, bool, error) {
	id, r, ok := middleware.CurrentUser(c)
	if !ok {
		return 0, false, apperr.ErrUnauthorized
	}
	return id, r == role.Admin, nil
}

func parseID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", param, c.Param(param), apperr.ErrValidation)
	}
	return uint(id), nil
}

func parsePage(c *gin.Context) (skip, limit int, err error) {
	skip, err = strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		return 0, 0, fmt.Errorf("skip must be a non-negative integer: %w", apperr.ErrValidation)
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repository.DefaultLimit)))
	if err != nil || limit < 1 || limit > repository.MaxLimit {
		return 0, 0, fmt.Errorf("limit must be between 1 and %d: %w", repository.MaxLimit, apperr.ErrValidation)
	}
	return skip, limit, nil
}

func bindError(err error) error {
	return apperr.Wrap(apperr.ErrValidation, err)
}

// readUpload returns the name and contents of a multipart file field.
func readUpload(c *gin.Context, field string) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%s is required: %w", field, apperr.ErrValidation)
	}
	data, err := readAll(fh)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(fh.Filename), data, nil
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > MaxUploadBytes {
		return nil, fmt.Errorf("file is larger than %d bytes: %w", MaxUploadBytes, apperr.ErrValidation)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("file is larger than %d bytes: %w", MaxUploadBytes, apperr.ErrValidation)
	}
	return data, nil
}

// Ping reports that the service is up.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ping [get]
func (h *APIHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
