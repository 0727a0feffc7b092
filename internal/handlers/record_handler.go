package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/services"
)

func (h *Handler) GetHealthRecords(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	records, err := h.Records.List(c.Request.Context(), who)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// CreateHealthRecord accepts multipart/form-data with up to five files in
// the "attachments" field.
func (h *Handler) CreateHealthRecord(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			respondError(c, apperr.Invalid(apperr.CodeInvalidRequest, "Expected multipart/form-data"))
			return
		}
		badBody(c, err)
		return
	}

	in := services.HealthRecordInput{
		RecordType:   c.PostForm("recordType"),
		Date:         c.PostForm("date"),
		DoctorName:   c.PostForm("doctorName"),
		HospitalName: c.PostForm("hospitalName"),
		Details:      c.PostForm("details"),
	}
	record, err := h.Records.Create(c.Request.Context(), who, in, form.File["attachments"])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) GetHealthRecordAttachment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, apperr.NotFound("Attachment not found"))
		return
	}

	body, att, err := h.Records.OpenAttachment(c.Request.Context(), who, c.Param("id"), index)
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, att.Size, att.ContentType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", att.Filename),
	})
}
