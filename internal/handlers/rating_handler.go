package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/telehealth-api/internal/services"
)

func (h *Handler) SubmitRating(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req services.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	rating, err := h.Ratings.Submit(c.Request.Context(), who, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  "Rating submitted successfully",
		"ratingId": rating.ID.Hex(),
	})
}

func (h *Handler) UpdateRating(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req struct {
		Rating int    `json:"rating"`
		Review string `json:"review"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	rating, err := h.Ratings.Update(c.Request.Context(), who, c.Param("ratingId"), req.Rating, req.Review)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rating": rating})
}

// GetDoctorRatings is public. Unparseable page or limit fall back to the
// defaults.
func (h *Handler) GetDoctorRatings(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	ratings, pagination, err := h.Ratings.ListByDoctor(c.Request.Context(), c.Param("doctorId"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": ratings, "pagination": pagination})
}

func (h *Handler) GetUserRating(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	rating, err := h.Ratings.GetUserRating(c.Request.Context(), who, c.Param("doctorId"), c.Param("appointmentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rating": rating})
}
