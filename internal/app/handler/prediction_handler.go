package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/dto"

	"github.com/gin-gonic/gin"
)

// CreatePrediction scores one record.
// @Summary Create prediction
// @Description Charges the model's price. Failed predictions are refunded.
// @Tags Predictions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreatePredictionRequest true "Model and input record"
// @Success 201 {object} dto.SuccessResponse{data=dto.PredictionResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/predictions [post]
func (h *APIHandler) CreatePrediction(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var request dto.CreatePredictionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, bindError(err))
		return
	}

	p, err := h.Predictions.Predict(c.Request.Context(), userID, request.ModelID, request.InputData)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusCreated, "prediction completed", dto.NewPredictionResponse(p))
}

// CreatePredictionFromFile scores every row of an uploaded CSV table.
// @Summary Batch prediction
// @Description The table needs a header row and numeric cells. The charge is the price times the number of rows.
// @Tags Predictions
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param model_id formData int true "Model ID"
// @Param file formData file true "CSV table"
// @Success 201 {object} dto.SuccessResponse{data=dto.PredictionResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/predictions/file [post]
func (h *APIHandler) CreatePredictionFromFile(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	modelID, err := strconv.ParseUint(c.PostForm("model_id"), 10, 32)
	if err != nil || modelID == 0 {
		respondError(c, fmt.Errorf("model_id must be a positive integer: %w", apperr.ErrValidation))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, fmt.Errorf("file is required: %w", apperr.ErrValidation))
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		respondError(c, fmt.Errorf("only .csv files are supported: %w", apperr.ErrValidation))
		return
	}
	data, err := readAll(fh)
	if err != nil {
		respondError(c, err)
		return
	}

	p, err := h.Predictions.PredictFile(c.Request.Context(), userID, uint(modelID), bytes.NewReader(data))
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusCreated, "batch prediction completed", dto.NewPredictionResponse(p))
}

// ListPredictions lists the current user's predictions, newest first.
// @Summary List predictions
// @Tags Predictions
// @Produce json
// @Security BearerAuth
// @Param skip query int false "Offset" default(0)
// @Param limit query int false "Page size" default(100)
// @Success 200 {object} dto.SuccessResponse{data=dto.PredictionListResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/predictions [get]
func (h *APIHandler) ListPredictions(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	skip, limit, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	predictions, err := h.Predictions.List(c.Request.Context(), userID, skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.PredictionResponse, len(predictions))
	for i := range predictions {
		out[i] = dto.NewPredictionResponse(&predictions[i])
	}
	successResponse(c, http.StatusOK, "", dto.PredictionListResponse{Predictions: out, Total: len(out)})
}

// GetPrediction returns one prediction of the current user.
// @Summary Get prediction
// @Tags Predictions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Prediction ID"
// @Success 200 {object} dto.SuccessResponse{data=dto.PredictionResponse}
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/predictions/{id} [get]
func (h *APIHandler) GetPrediction(c *gin.Context) {
	userID, admin, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	p, err := h.Predictions.Get(c.Request.Context(), userID, admin, id)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, "", dto.NewPredictionResponse(p))
}

// DownloadPredictionFile returns a stored batch input or result table.
// @Summary Download batch file
// @Tags Predictions
// @Produce text/csv
// @Security BearerAuth
// @Param filename path string true "File name"
// @Success 200 {file} file
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/predictions/file/{filename} [get]
func (h *APIHandler) DownloadPredictionFile(c *gin.Context) {
	userID, admin, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	name := c.Param("filename")
	data, err := h.Predictions.OpenFile(c.Request.Context(), userID, admin, name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv", data)
}
