package api

import (
	"net/http"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/seats"
	"github.com/Domenick1991/busbooking/internal/service/trips"
	"github.com/gin-gonic/gin"
)

type TripHandler struct {
	trips  trips.TripUseCase
	ledger seats.LedgerUseCase
}

// seatIDsRequest also takes the camelCase key older clients send.
type seatIDsRequest struct {
	SeatIDs []string `json:"seat_ids"`
	Legacy  []string `json:"seatIds"`
}

func (r seatIDsRequest) ids() []string {
	if len(r.SeatIDs) > 0 {
		return r.SeatIDs
	}
	return r.Legacy
}

type createTripsBatchRequest struct {
	trips.CreateTripInput
	Dates []string `json:"dates"`
}

type releaseResponse struct {
	Released []string `json:"released"`
}

func NewTripHandler(trips trips.TripUseCase, ledger seats.LedgerUseCase) *TripHandler {
	return &TripHandler{trips: trips, ledger: ledger}
}

// Register mounts the trip routes. admin guards the write endpoints.
func (h *TripHandler) Register(router *gin.RouterGroup, admin ...gin.HandlerFunc) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/seats", h.seats)
	router.POST("/:id/seats/hold", h.hold)
	router.POST("/:id/seats/release", h.release)
	router.POST("", chain(admin, h.create)...)
	router.POST("/batch", chain(admin, h.createBatch)...)
}

func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, h)
}

func (h *TripHandler) list(c *gin.Context) {
	filter := domain.TripFilter{
		From: c.Query("from"),
		To:   c.Query("to"),
		Date: c.Query("date"),
	}
	result, err := h.trips.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TripHandler) get(c *gin.Context) {
	trip, err := h.trips.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

func (h *TripHandler) seats(c *gin.Context) {
	list, err := h.ledger.ListSeats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *TripHandler) hold(c *gin.Context) {
	var req seatIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	result, err := h.ledger.Hold(c.Request.Context(), c.Param("id"), req.ids())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TripHandler) release(c *gin.Context) {
	var req seatIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	released, err := h.ledger.Release(c.Request.Context(), c.Param("id"), req.ids())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, releaseResponse{Released: released})
}

func (h *TripHandler) create(c *gin.Context) {
	var req trips.CreateTripInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	trip, err := h.trips.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

func (h *TripHandler) createBatch(c *gin.Context) {
	var req createTripsBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	created, err := h.trips.CreateBatch(c.Request.Context(), req.CreateTripInput, req.Dates)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}
