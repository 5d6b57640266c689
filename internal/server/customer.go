package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	customerdomain "github.com/aspirepayments/aspire-payments-web/internal/customer/domain"
)

type customerRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Company   *string `json:"company"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Address1  *string `json:"address1"`
	Address2  *string `json:"address2"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	Postal    *string `json:"postal"`
	Country   *string `json:"country"`
	Terms     *string `json:"terms"`
}

// @Summary      Create Customer
// @Description  Create a customer; a duplicate email returns the existing one
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        request body customerRequest true "Create Customer Request"
// @Success      200  {object}  customerdomain.Customer
// @Router       /customers [post]
func (s *Server) CreateCustomer(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}

	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), merchantID, customerdomain.CreateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Email:     req.Email,
		Phone:     req.Phone,
		Address1:  req.Address1,
		Address2:  req.Address2,
		City:      req.City,
		State:     req.State,
		Postal:    req.Postal,
		Country:   req.Country,
		Terms:     req.Terms,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Customer
// @Tags         customers
// @Produce      json
// @Param        id  path  string  true  "Customer ID"
// @Success      200  {object}  customerdomain.Customer
// @Router       /customers/{id} [get]
func (s *Server) GetCustomer(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.customerSvc.Get(c.Request.Context(), merchantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Patch Customer
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        id      path  string           true  "Customer ID"
// @Param        request body  customerRequest  true  "Patch Customer Request"
// @Success      200  {object}  customerdomain.Customer
// @Router       /customers/{id} [patch]
func (s *Server) PatchCustomer(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Patch(c.Request.Context(), merchantID, id, customerdomain.PatchInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Email:     req.Email,
		Phone:     req.Phone,
		Address1:  req.Address1,
		Address2:  req.Address2,
		City:      req.City,
		State:     req.State,
		Postal:    req.Postal,
		Country:   req.Country,
		Terms:     req.Terms,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Customers
// @Tags         customers
// @Produce      json
// @Param        search  query  string  false  "Search"
// @Param        cursor  query  string  false  "Cursor"
// @Param        limit   query  int     false  "Limit"
// @Success      200  {object}  customerdomain.ListResult
// @Router       /customers [get]
func (s *Server) ListCustomers(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	cursor, ok := queryID(c, "cursor")
	if !ok {
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), merchantID, customerdomain.ListInput{
		Search: c.Query("search"),
		Cursor: cursor,
		Limit:  queryInt(c, "limit"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
