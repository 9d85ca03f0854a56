package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/msgslot/internal/auth"
	"github.com/danmuck/msgslot/internal/observability"
	"github.com/danmuck/msgslot/internal/slot"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const adminVersion = "0.1.0"

// AdminRouter builds the admin API engine.
func (s *Service) AdminRouter() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.registerRoutes(r)
	return r
}

func (s *Service) registerRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": "slotd",
			"version":   adminVersion,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := s.ready.Load()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":          ready,
			"active_clients": s.ActiveClients(),
			"component":      "slotd",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	slots := r.Group("/slots")
	if s.cfg.AdminToken != "" {
		slots.Use(requireToken(auth.StaticToken{Token: s.cfg.AdminToken}))
	}

	slots.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"slots":           s.registry.Stats(),
			"max_message_len": s.registry.Options().MaxMessageLen,
		})
	})

	slots.GET("/:slot", func(c *gin.Context) {
		raw, err := strconv.ParseUint(c.Param("slot"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slot id must be an unsigned integer"})
			return
		}
		sl, err := s.registry.Lookup(slot.SlotID(raw))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "slot not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"slot":     sl.Stats(),
			"channels": sl.Store().Channels(),
		})
	})
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Authorize(v, c.GetHeader("Authorization")); err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("slotd admin auth rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// serveAdmin runs the admin API on addr until ctx ends.
func (s *Service) serveAdmin(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.AdminRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("slotd admin listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
