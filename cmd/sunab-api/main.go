package main

import (
	"go-sunab/internal/api"
	"go-sunab/internal/api/handler"
	"go-sunab/internal/store"
	"go-sunab/pkg/router"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	st, err := store.Open("sunab.db")
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	r := router.New()
	api.RegisterRoutes(r, handler.New(st, logger))
	r.Start(":8080")
}
