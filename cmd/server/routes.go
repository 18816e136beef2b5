package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stylize.backend/internal/interfaces/http/handlers"
	"stylize.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	authHandler       *handlers.AuthHandler
	generationHandler *handlers.GenerationHandler
	authMiddleware    gin.HandlerFunc
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/nonce", d.authHandler.Nonce)
			auth.POST("/signin", d.authHandler.SignIn)
			auth.POST("/farcaster/signin", d.authHandler.FarcasterSignIn)
			auth.GET("/me", d.authMiddleware, d.authHandler.Me)
		}

		// Generation routes (protected)
		generate := v1.Group("/generate")
		generate.Use(d.authMiddleware)
		{
			generate.POST("", d.generationHandler.CreateQuote)
			generate.POST("/payment", middleware.IdempotencyMiddleware(), d.generationHandler.SubmitPayment)
		}

		protected := v1.Group("")
		protected.Use(d.authMiddleware)
		{
			protected.GET("/generations/:quoteId", d.generationHandler.GetGeneration)
			protected.GET("/jobs", d.generationHandler.ListJobs)
			protected.GET("/images", d.generationHandler.ListImages)
		}

		// Admin routes (protected + admin role)
		admin := v1.Group("/admin")
		admin.Use(d.authMiddleware, middleware.RequireAdmin())
		{
			admin.POST("/generations/:quoteId/reset", d.generationHandler.ResetPaymentError)
		}
	}
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "stylize-backend",
			"version": "0.1.0",
		})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
