package handler

import (
	"net/http"

	"mlbilling/internal/app/catalog"
	"mlbilling/internal/app/dto"
	"mlbilling/internal/app/storage"

	"github.com/gin-gonic/gin"
)

// EstimateCost prices an artifact without storing it.
// @Summary Estimate model price
// @Description Returns the per-prediction price an uploaded artifact would get
// @Tags Models
// @Accept multipart/form-data
// @Produce json
// @Param model_file formData file true "Model artifact (.yaml, .yml, .json)"
// @Success 200 {object} dto.SuccessResponse{data=dto.CostEstimateResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/models/estimate-cost [post]
func (h *APIHandler) EstimateCost(c *gin.Context) {
	name, data, err := readUpload(c, "model_file")
	if err != nil {
		respondError(c, err)
		return
	}

	price, err := h.Catalog.EstimateCost(name, data)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, "", dto.CostEstimateResponse{
		Filename:          name,
		SizeBytes:         len(data),
		CostPerPrediction: price,
	})
}

// UploadModel publishes a model owned by the current user.
// @Summary Upload model
// @Tags Models
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param name formData string true "Model name"
// @Param description formData string false "Description"
// @Param version formData string false "Version" default(1.0)
// @Param model_type formData string true "classification or regression"
// @Param model_file formData file true "Model artifact (.yaml, .yml, .json)"
// @Success 201 {object} dto.SuccessResponse{data=dto.ModelResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Router /api/models [post]
func (h *APIHandler) UploadModel(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	name, data, err := readUpload(c, "model_file")
	if err != nil {
		respondError(c, err)
		return
	}

	model, err := h.Catalog.Upload(c.Request.Context(), userID, catalog.UploadRequest{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Version:     c.DefaultPostForm("version", "1.0"),
		ModelType:   c.PostForm("model_type"),
		Filename:    name,
		Data:        data,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusCreated, "model uploaded", dto.NewModelResponse(model))
}

// ListModels lists published models.
// @Summary List models
// @Tags Models
// @Produce json
// @Param skip query int false "Offset" default(0)
// @Param limit query int false "Page size" default(100)
// @Success 200 {object} dto.SuccessResponse{data=dto.ModelListResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/models [get]
func (h *APIHandler) ListModels(c *gin.Context) {
	skip, limit, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	models, err := h.Catalog.List(c.Request.Context(), skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.ModelResponse, len(models))
	for i := range models {
		out[i] = dto.NewModelResponse(&models[i])
	}
	successResponse(c, http.StatusOK, "", dto.ModelListResponse{Models: out, Total: len(out)})
}

// GetModel returns one model.
// @Summary Get model
// @Tags Models
// @Produce json
// @Param id path int true "Model ID"
// @Success 200 {object} dto.SuccessResponse{data=dto.ModelResponse}
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/models/{id} [get]
func (h *APIHandler) GetModel(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	model, err := h.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, "", dto.NewModelResponse(model))
}

// DeleteModel soft-deletes a model.
// @Summary Delete model
// @Description Only the owner or an admin may delete a model
// @Tags Models
// @Produce json
// @Security BearerAuth
// @Param id path int true "Model ID"
// @Success 200 {object} dto.SuccessResponse{data=dto.ModelResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/models/{id} [delete]
func (h *APIHandler) DeleteModel(c *gin.Context) {
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

	model, err := h.Catalog.Delete(c.Request.Context(), userID, admin, id)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, "model deleted", dto.NewModelResponse(model))
}

// GetArtifactURL returns a temporary link to the model artifact.
// @Summary Artifact download link
// @Tags Models
// @Produce json
// @Security BearerAuth
// @Param id path int true "Model ID"
// @Success 200 {object} dto.SuccessResponse{data=dto.ArtifactURLResponse}
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/models/{id}/artifact-url [get]
func (h *APIHandler) GetArtifactURL(c *gin.Context) {
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

	url, err := h.Catalog.ArtifactURL(c.Request.Context(), userID, admin, id)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, "", dto.ArtifactURLResponse{
		URL:       url,
		ExpiresIn: int(storage.URLExpiry.Seconds()),
	})
}

// PredictWithModel scores one record with the model in the path.
// @Summary Predict with model
// @Tags Models
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Model ID"
// @Param request body dto.PredictRequest true "Input record"
// @Success 201 {object} dto.SuccessResponse{data=dto.PredictionResponse}
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/models/{id}/predict [post]
func (h *APIHandler) PredictWithModel(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var request dto.PredictRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, bindError(err))
		return
	}

	p, err := h.Predictions.Predict(c.Request.Context(), userID, id, request.InputData)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusCreated, "prediction completed", dto.NewPredictionResponse(p))
}
