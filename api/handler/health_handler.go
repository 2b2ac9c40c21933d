package handler

import (
	"net/http"

	"github.com/musayazlik/postify/internal/dto"

	"github.com/labstack/echo/v4"
)

func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Message: "API is running smoothly",
	})
}
