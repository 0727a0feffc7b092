package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/telehealth-api/internal/services"
)

func authResponse(res *services.AuthResult) gin.H {
	return gin.H{
		"id":          res.User.ID.Hex(),
		"name":        res.User.Name,
		"phoneNumber": res.User.PhoneNumber,
		"role":        res.User.Role,
		"token":       res.Token,
	}
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	res, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse(res))
}

func (h *Handler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	res, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse(res))
}

func (h *Handler) GetProfile(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	user, err := h.Auth.Profile(c.Request.Context(), who)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
