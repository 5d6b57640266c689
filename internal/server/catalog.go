package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/aspirepayments/aspire-payments-web/internal/catalog/domain"
)

type itemRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	UnitPrice   int64   `json:"unit_price"`
}

func (r itemRequest) toInput() catalogdomain.ItemInput {
	return catalogdomain.ItemInput{Name: r.Name, Description: r.Description, UnitPrice: r.UnitPrice}
}

func (s *Server) CreateItem(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.itemSvc.Create(c.Request.Context(), merchantID, req.toInput())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetItem(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.itemSvc.Get(c.Request.Context(), merchantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateItem(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.itemSvc.Update(c.Request.Context(), merchantID, id, req.toInput())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteItem(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.itemSvc.Delete(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListItems(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	resp, err := s.itemSvc.List(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
