// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api exposes the forge pipelines over HTTP. Each pipeline gets
// one POST endpoint; blocked and degraded runs are still 200s carrying
// their error log, because a pipeline that resolved to a terminal state
// did its job. Only transport-level problems map to error statuses.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianForge/services/forge/agents/coder"
	"github.com/AleutianAI/AleutianForge/services/forge/agents/critic"
	"github.com/AleutianAI/AleutianForge/services/forge/agents/planner"
	"github.com/AleutianAI/AleutianForge/services/forge/agents/single"
	"github.com/AleutianAI/AleutianForge/services/forge/config"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

// Server hosts the forge HTTP API.
type Server struct {
	planner *planner.Agent
	coder   *coder.Agent
	critic  *critic.Agent
	single  *single.Agent
	client  llm.Client
	port    int
}

// NewServer wires the four pipeline agents onto one model client.
func NewServer(client llm.Client, cfg *config.Config) *Server {
	return &Server{
		planner: planner.New(client, cfg),
		coder:   coder.New(client, cfg),
		critic:  critic.New(client, cfg),
		single:  single.New(client, cfg),
		client:  client,
		port:    cfg.Server.Port,
	}
}

// Router builds the gin engine with tracing, metrics, and all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("forge-api"))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1/forge")
	{
		v1.GET("/health", s.handleHealth)
		v1.POST("/plan", s.handlePlan)
		v1.POST("/code", s.handleCode)
		v1.POST("/critique", s.handleCritique)
		v1.POST("/solve", s.handleSolve)
	}
	return router
}

// Run serves until the context is canceled, then drains in-flight
// requests with a grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Forge API listening", slog.Int("port", s.port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": s.client.Name(),
		"model":   s.client.Model(),
	})
}

func (s *Server) handlePlan(c *gin.Context) {
	var req planner.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.UserRequest == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_request is required"})
		return
	}

	res, err := s.planner.CreatePlan(c.Request.Context(), req)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCode(c *gin.Context) {
	var req coder.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := s.coder.GenerateCode(c.Request.Context(), req)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCritique(c *gin.Context) {
	var req critic.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := s.critic.Critique(c.Request.Context(), req)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleSolve(c *gin.Context) {
	var req single.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature is required"})
		return
	}

	res, err := s.single.Solve(c.Request.Context(), req)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// writePipelineError maps run-level failures: client cancellation is
// 499-equivalent, everything else is internal.
func writePipelineError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		return
	}
	slog.Error("Pipeline run failed", slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
