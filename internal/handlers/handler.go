package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/chat"
	"github.com/harentsoaR/telehealth-api/internal/middleware"
	"github.com/harentsoaR/telehealth-api/internal/services"
)

// Handler holds the services the HTTP layer calls into.
type Handler struct {
	Auth    *services.AuthService
	Booking *services.BookingService
	Ratings *services.RatingService
	Doctors *services.DoctorService
	Records *services.HealthRecordService
	Chat    *services.ChatService
	Hub     *chat.Hub
}

// caller reads the identity set by middleware.Auth. It aborts the request
// and returns false when the token carried a malformed user id.
func caller(c *gin.Context) (services.Caller, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.UserIDKey))
	if err != nil {
		middleware.Abort(c, apperr.Unauthorized("Invalid user ID in token"))
		return services.Caller{}, false
	}
	return services.Caller{ID: id, Role: c.GetString(middleware.UserRoleKey)}, true
}

func respondError(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		zerolog.Ctx(c.Request.Context()).Error().Err(e.Err).Str("path", c.FullPath()).Msg(e.Message)
	}
	_ = c.Error(err)
	middleware.Abort(c, e)
}

func badBody(c *gin.Context, err error) {
	zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("request body rejected")
	respondError(c, apperr.Invalid(apperr.CodeInvalidRequest, "Invalid request body"))
}
