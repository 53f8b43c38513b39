package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error     string   `json:"error"`
	Reason    string   `json:"reason,omitempty"`
	SeatIDs   []string `json:"seat_ids,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// statusFor maps the domain error taxonomy onto HTTP status codes. Anything
// unrecognised is an internal error and its message is not exposed.
func statusFor(err error) (int, errorResponse) {
	var (
		notFound     domain.NotFoundError
		selection    domain.InvalidSeatSelectionError
		forbidden    domain.ForbiddenError
		transition   domain.InvalidTransitionError
		validation   domain.ValidationError
		conflict     domain.ConflictError
		unauthorized domain.UnauthorizedError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, errorResponse{Error: notFound.Error()}
	case errors.As(err, &selection):
		return http.StatusBadRequest, errorResponse{Error: selection.Error(), Reason: string(selection.Reason), SeatIDs: selection.SeatIDs}
	case errors.As(err, &forbidden):
		return http.StatusForbidden, errorResponse{Error: forbidden.Error()}
	case errors.As(err, &transition):
		return http.StatusBadRequest, errorResponse{Error: transition.Error()}
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Error: validation.Error()}
	case errors.As(err, &conflict):
		return http.StatusConflict, errorResponse{Error: conflict.Error()}
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, errorResponse{Error: unauthorized.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := statusFor(err)
	body.RequestID = GetRequestID(c)
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	writeError(c, err)
	c.Abort()
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, domain.ValidationError{Msg: msg})
}
