package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type connectGatewayRequest struct {
	Gateway string `json:"gateway"`
	APIKey  string `json:"api_key"`
}

// ConnectGateway stores (or rotates) a merchant's gateway credential.
func (s *Server) ConnectGateway(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}

	var req connectGatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.tenantSvc.ConnectGateway(c.Request.Context(), merchantID, req.Gateway, req.APIKey); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
