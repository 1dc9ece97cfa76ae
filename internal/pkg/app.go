package pkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mlbilling/internal/app/config"
	"mlbilling/internal/app/handler"
	"mlbilling/internal/app/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Handler *handler.APIHandler
	Auth    *middleware.AuthMiddleware
	Metrics http.Handler
}

func NewApp(c *config.Config, r *gin.Engine, h *handler.APIHandler, auth *middleware.AuthMiddleware, metrics http.Handler) *Application {
	return &Application{
		Config:  c,
		Router:  r,
		Handler: h,
		Auth:    auth,
		Metrics: metrics,
	}
}

// RunApp serves the API until ctx is cancelled, then drains in-flight
// requests.
func (a *Application) RunApp(ctx context.Context) error {
	logrus.Info("Server start up")

	a.Handler.RegisterAPIRoutes(a.Router, a.Auth, a.Metrics)

	serverAddress := fmt.Sprintf("%s:%d", a.Config.ServiceHost, a.Config.ServicePort)
	srv := &http.Server{
		Addr:              serverAddress,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting server on %s", serverAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logrus.Info("Server down")
	return nil
}
