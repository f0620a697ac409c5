package main

import (
	"fmt"

	"pos_khqr/api"
	"pos_khqr/internal/config"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.New()

	r := gin.Default()
	api.InitRoutes(r, cfg)

	if err := r.Run(":" + cfg.Port); err != nil {
		panic(fmt.Errorf("error trying to start server: %v", err))
	}
}
