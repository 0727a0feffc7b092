package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harentsoaR/telehealth-api/internal/handlers"
	"github.com/harentsoaR/telehealth-api/internal/middleware"
	"github.com/harentsoaR/telehealth-api/internal/utils"
)

func Routes(r *gin.Engine, h *handlers.Handler, jwt *utils.JWTManager, gatherer prometheus.Gatherer) {
	auth := middleware.Auth(jwt)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")

	//public
	users := api.Group("/users")
	users.POST("/register", h.RegisterUser)
	users.POST("/login", h.Login)
	users.GET("/profile", auth, h.GetProfile)

	api.GET("/doctors", h.GetDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
	api.GET("/ratings/doctor/:doctorId", h.GetDoctorRatings)

	//admin
	admin := api.Group("/admin", auth, middleware.RequireAdmin())
	admin.POST("/doctors", h.CreateDoctor)
	admin.PUT("/doctors/:id", h.UpdateDoctor)
	admin.DELETE("/doctors/:id", h.DeleteDoctor)

	//private
	appointments := api.Group("/appointments", auth)
	appointments.GET("", h.GetAppointments)
	appointments.POST("", h.CreateAppointment)
	appointments.GET("/doctor/:doctorId", h.GetDoctorAppointments)
	appointments.GET("/all", h.GetAllAppointments)
	appointments.GET("/completed", h.GetCompletedAppointments)
	appointments.PATCH("/:id/status", h.UpdateAppointmentStatus)
	appointments.PATCH("/:id/cancel", h.CancelAppointment)

	ratings := api.Group("/ratings", auth)
	ratings.POST("/submit", h.SubmitRating)
	ratings.PUT("/:ratingId", h.UpdateRating)
	ratings.GET("/user/:doctorId/:appointmentId", h.GetUserRating)

	records := api.Group("/health-records", auth)
	records.GET("", h.GetHealthRecords)
	records.POST("", h.CreateHealthRecord)
	records.GET("/:id/attachments/:index", h.GetHealthRecordAttachment)

	chat := api.Group("/chat", auth)
	chat.POST("", h.SendMessage)
	chat.GET("/ws", h.ChatSocket)
	chat.GET("/:peerId", h.GetConversation)
}
