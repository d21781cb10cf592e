package api

import (
	"go-sunab/internal/api/handler"
	"go-sunab/pkg/router"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-sunab/docs"
)

// RegisterRoutes mounts the estimation API and the swagger UI.
func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.POST("/api/v1/estimations", h.CreateEstimation)
	r.GET("/api/v1/estimations", h.ListEstimations)
	// More specific routes first
	r.GET("/api/v1/estimations/*/result", h.GetEstimationResult)
	r.GET("/api/v1/estimations/*/errors", h.GetEstimationErrors)
	// Generic job route last
	r.GET("/api/v1/estimations/*", h.GetEstimation)

	r.GET("/swagger/*", httpSwagger.WrapHandler.ServeHTTP)
}
