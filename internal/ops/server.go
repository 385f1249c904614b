// Package ops exposes the operational HTTP surface: liveness and a
// status snapshot of the running operator.
package ops

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fair-protocol/operator/internal/operator"
)

// Server answers health and status probes.
type Server struct {
	srv *http.Server
}

type statusResponse struct {
	Operator      string         `json:"operator"`
	Registrations []registration `json:"registrations"`
	ProcessedIDs  int            `json:"processedIds"`
}

type registration struct {
	ScriptID   string  `json:"scriptId"`
	ScriptName string  `json:"scriptName"`
	Fee        float64 `json:"fee"`
}

// NewServer builds the ops server on the provided port; a zero port
// disables it.
func NewServer(port int, operatorAddr string, state *operator.State) *Server {
	if port == 0 {
		return nil
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/status", func(c *gin.Context) {
		var regs []registration
		for _, r := range state.Registrations() {
			regs = append(regs, registration{
				ScriptID:   r.ScriptID,
				ScriptName: r.ScriptName,
				Fee:        r.OperatorFee,
			})
		}
		c.JSON(http.StatusOK, statusResponse{
			Operator:      operatorAddr,
			Registrations: regs,
			ProcessedIDs:  state.Processed().Size(),
		})
	})

	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		},
	}
}

// Start serves until shutdown; returns nil when disabled.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the ops server; no-op when disabled.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
