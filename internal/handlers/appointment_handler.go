package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/telehealth-api/internal/services"
)

// GetAppointments lists the caller's appointments. With ?doctor=&date= it
// lists the slots already held for that doctor on that day instead.
func (h *Handler) GetAppointments(c *gin.Context) {
	if doctorID := c.Query("doctor"); doctorID != "" {
		apts, err := h.Booking.ListForDoctorOnDate(c.Request.Context(), doctorID, c.Query("date"), c.Query("includeCancelled") == "true")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apts)
		return
	}

	who, ok := caller(c)
	if !ok {
		return
	}
	views, err := h.Booking.ListForUser(c.Request.Context(), who)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req services.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	view, err := h.Booking.Book(c.Request.Context(), who, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetDoctorAppointments(c *gin.Context) {
	views, err := h.Booking.ListForDoctor(c.Request.Context(), c.Param("doctorId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetAllAppointments is admin only; the service enforces the role.
func (h *Handler) GetAllAppointments(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	views, err := h.Booking.ListAll(c.Request.Context(), who, c.Query("status"), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) GetCompletedAppointments(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	views, err := h.Booking.ListCompleted(c.Request.Context(), who)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	view, err := h.Booking.UpdateStatus(c.Request.Context(), who, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	view, err := h.Booking.Cancel(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
