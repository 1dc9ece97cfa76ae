package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "mlbilling/docs"
	"mlbilling/internal/api"

	"github.com/sirupsen/logrus"
)

// @title ML Billing API
// @version 1.0
// @description Pay-per-prediction access to uploaded ML models.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logrus.Info("App start")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.StartServer(ctx); err != nil {
		logrus.Fatal(err)
	}
	logrus.Info("App terminated")
}
