package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"
	"time"

	"mlbilling/internal/app/account"
	"mlbilling/internal/app/catalog"
	"mlbilling/internal/app/config"
	"mlbilling/internal/app/inference"
	"mlbilling/internal/app/ledger"
	"mlbilling/internal/app/middleware"
	"mlbilling/internal/app/prediction"
	"mlbilling/internal/app/repository/memory"
	"mlbilling/internal/app/storage"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const artifact = "kind: linear\nweights: [1, 2]\nbias: 0.5\n"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	objects := storage.NewFSStore(afero.NewMemMapFs(), "/data")
	executor := inference.NewExecutor(time.Second)
	credits := ledger.New(store)
	artifacts := storage.NewArtifacts(objects)

	models := catalog.New(store, store, artifacts, executor)
	predictions := prediction.New(prediction.Deps{
		Models:      store,
		Users:       store,
		Predictions: store,
		Ledger:      credits,
		Artifacts:   artifacts,
		Executor:    executor,
		Files:       storage.NewFiles(objects),
	}, prediction.WithCompensation(1, 0))
	accounts := account.New(store, credits)

	cfg := &config.Config{JWT: config.JWTConfig{
		Token:         "test-secret",
		ExpiresIn:     time.Hour,
		SigningMethod: jwt.SigningMethodHS256,
	}}
	auth := middleware.NewAuthMiddleware(middleware.NewLocalBlacklist(), cfg)
	h := NewAPIHandler(models, predictions, accounts, NewAuthHandler(accounts, auth))

	router := gin.New()
	h.RegisterAPIRoutes(router, auth, nil)
	return router
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type request struct {
	method string
	url    string
	token  string
	body   io.Reader
	ctype  string
}

func do(t *testing.T, r http.Handler, req request) (int, envelope) {
	t.Helper()
	httpReq := httptest.NewRequest(req.method, req.url, req.body)
	if req.ctype != "" {
		httpReq.Header.Set("Content-Type", req.ctype)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func doJSON(t *testing.T, r http.Handler, method, url, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	return do(t, r, request{method: method, url: url, token: token, body: reader, ctype: "application/json"})
}

func doMultipart(t *testing.T, r http.Handler, url, token string, fields map[string]string, fileField, filename, content string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(fileField, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(t, r, request{method: http.MethodPost, url: url, token: token, body: &buf, ctype: mw.FormDataContentType()})
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v), string(env.Data))
}

func register(t *testing.T, r http.Handler, email string) string {
	t.Helper()
	code, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": "secret1", "full_name": "Test User",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	var login struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, env, &login)
	require.NotEmpty(t, login.AccessToken)
	return login.AccessToken
}

func topUp(t *testing.T, r http.Handler, token, amount string) string {
	t.Helper()
	code, env := doJSON(t, r, http.MethodPut, "/api/users/me/credits", token, gin.H{"amount": amount})
	require.Equal(t, http.StatusOK, code, env.Message)
	var balance struct {
		Credits string `json:"credits"`
	}
	decode(t, env, &balance)
	return balance.Credits
}

func uploadModel(t *testing.T, r http.Handler, token string) uint {
	t.Helper()
	code, env := doMultipart(t, r, "/api/models", token, map[string]string{
		"name": "linear", "version": "1", "model_type": "regression",
	}, "model_file", "linear.yaml", artifact)
	require.Equal(t, http.StatusCreated, code, env.Message)

	var model struct {
		ID uint `json:"id"`
	}
	decode(t, env, &model)
	return model.ID
}

func balance(t *testing.T, r http.Handler, token string) string {
	t.Helper()
	code, env := doJSON(t, r, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var user struct {
		Credits string `json:"credits"`
	}
	decode(t, env, &user)
	return user.Credits
}

func TestPing(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "pong"}`, w.Body.String())
}

func TestAuthFlow(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r, "ada@example.com")

	code, env := doJSON(t, r, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decode(t, env, &me)
	assert.Equal(t, "ada@example.com", me.Email)
	assert.Equal(t, "user", me.Role)

	code, _ = doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"email": "ada@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = doJSON(t, r, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = doJSON(t, r, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ada@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decode(t, env, &login)
	assert.Equal(t, "Bearer", login.TokenType)
	code, _ = doJSON(t, r, http.MethodGet, "/api/users/me", login.AccessToken, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRouter(t)

	code, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"email": "x@example.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "fail", env.Status)
}

func TestUpdateMe(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r, "ada@example.com")

	code, env := doJSON(t, r, http.MethodPut, "/api/users/me", token, gin.H{"full_name": "Ada Lovelace"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var me struct {
		FullName string `json:"full_name"`
	}
	decode(t, env, &me)
	assert.Equal(t, "Ada Lovelace", me.FullName)
}

func TestTopUp(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r, "ada@example.com")

	assert.Equal(t, "10.3", topUp(t, r, token, "10.26"))
	assert.Equal(t, "10.3", balance(t, r, token))

	code, _ := doJSON(t, r, http.MethodPut, "/api/users/me/credits", token, gin.H{"amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := doJSON(t, r, http.MethodGet, "/api/users/me/credits", token, nil)
	require.Equal(t, http.StatusOK, code)
	var history []struct {
		Reason string `json:"reason"`
	}
	decode(t, env, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "top_up", history[0].Reason)
}

func TestEstimateCost(t *testing.T) {
	r := newTestRouter(t)

	code, env := doMultipart(t, r, "/api/models/estimate-cost", "", nil, "model_file", "m.yaml", artifact)
	require.Equal(t, http.StatusOK, code, env.Message)
	var estimate struct {
		CostPerPrediction string `json:"cost_per_prediction"`
		SizeBytes         int    `json:"size_bytes"`
	}
	decode(t, env, &estimate)
	assert.Equal(t, "0.1", estimate.CostPerPrediction)
	assert.Equal(t, len(artifact), estimate.SizeBytes)

	code, _ = doMultipart(t, r, "/api/models/estimate-cost", "", nil, "model_file", "m.pkl", artifact)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUploadNeedsCredits(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r, "ada@example.com")

	code, _ := doMultipart(t, r, "/api/models", token, map[string]string{
		"name": "linear", "model_type": "regression",
	}, "model_file", "linear.yaml", artifact)
	assert.Equal(t, http.StatusPaymentRequired, code)
}

func TestPredictionFlow(t *testing.T) {
	r := newTestRouter(t)
	owner := register(t, r, "owner@example.com")
	topUp(t, r, owner, "10")
	modelID := uploadModel(t, r, owner)

	code, env := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/models/%d", modelID), "", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/models/%d/predict", modelID), owner, gin.H{"input_data": []float64{1, 2}})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var p struct {
		ID               uint      `json:"id"`
		PredictionResult []float64 `json:"prediction_result"`
		Cost             string    `json:"cost"`
	}
	decode(t, env, &p)
	assert.Equal(t, []float64{5.5}, p.PredictionResult)
	assert.Equal(t, "0.1", p.Cost)
	assert.Equal(t, "9.9", balance(t, r, owner))

	code, env = doJSON(t, r, http.MethodPost, "/api/predictions", owner, gin.H{"model_id": modelID, "input_data": []float64{1, 2, 3}})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "inference failed", env.Message)
	assert.Equal(t, "9.9", balance(t, r, owner))

	code, env = doJSON(t, r, http.MethodGet, "/api/predictions", owner, nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Total int `json:"total"`
	}
	decode(t, env, &list)
	assert.Equal(t, 1, list.Total)

	code, _ = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/predictions/%d", p.ID), owner, nil)
	assert.Equal(t, http.StatusOK, code)

	other := register(t, r, "other@example.com")
	code, _ = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/predictions/%d", p.ID), other, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = doJSON(t, r, http.MethodPost, "/api/predictions", other, gin.H{"model_id": modelID, "input_data": []float64{1, 2}})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "0", balance(t, r, other))
}

func TestBatchPrediction(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r, "ada@example.com")
	topUp(t, r, token, "100")
	modelID := uploadModel(t, r, token)

	code, env := doMultipart(t, r, "/api/predictions/file", token, map[string]string{
		"model_id": fmt.Sprint(modelID),
	}, "file", "input.csv", "a,b\n1,2\n3,4\n")
	require.Equal(t, http.StatusCreated, code, env.Message)

	var p struct {
		PredictionResult []float64 `json:"prediction_result"`
		Cost             string    `json:"cost"`
		ResultFilePath   string    `json:"result_file_path"`
	}
	decode(t, env, &p)
	assert.Equal(t, []float64{5.5, 11.5}, p.PredictionResult)
	assert.Equal(t, "0.2", p.Cost)
	assert.Equal(t, "99.8", balance(t, r, token))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predictions/file/"+path.Base(p.ResultFilePath), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a,b,prediction\n1,2,5.5\n3,4,11.5\n", w.Body.String())

	stranger := register(t, r, "stranger@example.com")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/predictions/file/"+path.Base(p.ResultFilePath), nil)
	req.Header.Set("Authorization", "Bearer "+stranger)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	code, _ = doMultipart(t, r, "/api/predictions/file", token, map[string]string{
		"model_id": fmt.Sprint(modelID),
	}, "file", "input.txt", "a,b\n1,2\n")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doMultipart(t, r, "/api/predictions/file", token, map[string]string{
		"model_id": fmt.Sprint(modelID),
	}, "file", "input.csv", "a,b\n1,2\n3\n")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "99.8", balance(t, r, token))
}

func TestDeleteModel(t *testing.T) {
	r := newTestRouter(t)
	owner := register(t, r, "owner@example.com")
	topUp(t, r, owner, "5")
	modelID := uploadModel(t, r, owner)
	other := register(t, r, "other@example.com")
	url := fmt.Sprintf("/api/models/%d", modelID)

	code, _ := doJSON(t, r, http.MethodDelete, url, other, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = doJSON(t, r, http.MethodGet, url+"/artifact-url", owner, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, r, http.MethodDelete, url, owner, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, r, http.MethodGet, url, "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doJSON(t, r, http.MethodPost, url+"/predict", owner, gin.H{"input_data": []float64{1, 2}})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := newTestRouter(t)

	for _, route := range []struct{ method, url string }{
		{http.MethodGet, "/api/users/me"},
		{http.MethodPost, "/api/predictions"},
		{http.MethodGet, "/api/predictions"},
		{http.MethodPost, "/api/models"},
		{http.MethodDelete, "/api/models/1"},
	} {
		code, _ := doJSON(t, r, route.method, route.url, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, route.url)
	}
}

func TestListPagination(t *testing.T) {
	r := newTestRouter(t)

	code, _ := doJSON(t, r, http.MethodGet, "/api/models?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = doJSON(t, r, http.MethodGet, "/api/models?skip=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := doJSON(t, r, http.MethodGet, "/api/models?skip=0&limit=10", "", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Models []json.RawMessage `json:"models"`
	}
	decode(t, env, &list)
	assert.Empty(t, list.Models)
}
