package api

import (
	"net/http"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type seatRef struct {
	SeatID    string `json:"seat_id"`
	SeatIDAlt string `json:"seatId"`
}

func (r seatRef) id() string {
	return firstNonEmpty(r.SeatID, r.SeatIDAlt)
}

// createBookingRequest accepts seats either as seat_ids or as a list of
// {seat_id} objects. Every key is also bound in camelCase.
type createBookingRequest struct {
	TripID        string    `json:"trip_id"`
	SeatIDs       []string  `json:"seat_ids"`
	Seats         []seatRef `json:"seats"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerEmail string    `json:"customer_email"`
	PickupPoint   string    `json:"pickup_point"`
	DropoffPoint  string    `json:"dropoff_point"`
	PaymentMethod string    `json:"payment_method"`

	TripIDAlt         string   `json:"tripId"`
	SeatIDsAlt        []string `json:"seatIds"`
	CustomerNameAlt   string   `json:"customerName"`
	CustomerPhoneAlt  string   `json:"customerPhone"`
	CustomerEmailAlt  string   `json:"customerEmail"`
	PickupPointIDAlt  string   `json:"pickupPointId"`
	DropoffPointIDAlt string   `json:"dropoffPointId"`
	PaymentMethodAlt  string   `json:"paymentMethod"`
}

func (r createBookingRequest) input() booking.CreateBookingInput {
	ids := append([]string(nil), r.SeatIDs...)
	ids = append(ids, r.SeatIDsAlt...)
	for _, s := range r.Seats {
		ids = append(ids, s.id())
	}
	return booking.CreateBookingInput{
		TripID:        firstNonEmpty(r.TripID, r.TripIDAlt),
		SeatIDs:       ids,
		CustomerName:  firstNonEmpty(r.CustomerName, r.CustomerNameAlt),
		CustomerPhone: firstNonEmpty(r.CustomerPhone, r.CustomerPhoneAlt),
		CustomerEmail: firstNonEmpty(r.CustomerEmail, r.CustomerEmailAlt),
		PickupPoint:   firstNonEmpty(r.PickupPoint, r.PickupPointIDAlt),
		DropoffPoint:  firstNonEmpty(r.DropoffPoint, r.DropoffPointIDAlt),
		PaymentMethod: domain.PaymentMethod(firstNonEmpty(r.PaymentMethod, r.PaymentMethodAlt)),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type paymentRequest struct {
	PaymentMethod    string `json:"payment_method"`
	PaymentMethodAlt string `json:"paymentMethod"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

// Register mounts the booking routes. optional attaches a requester when a
// token is present, required demands one, admin demands the admin role.
func (h *BookingHandler) Register(router *gin.RouterGroup, optional, required, admin gin.HandlerFunc) {
	router.POST("", optional, h.create)
	router.GET("", required, h.list)
	router.GET("/search", h.search)
	router.GET("/:id", optional, h.get)
	router.PUT("/:id/cancel", optional, h.cancel)
	router.PUT("/:id/payment", optional, h.updatePayment)
	router.PUT("/:id/status", required, admin, h.updateStatus)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	created, err := h.service.Create(c.Request.Context(), req.input(), requesterFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.List(c.Request.Context(), requesterFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) search(c *gin.Context) {
	bookings, err := h.service.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"), requesterFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	b, err := h.service.Cancel(c.Request.Context(), c.Param("id"), requesterFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) updatePayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	method, ok := domain.ParsePaymentMethod(firstNonEmpty(req.PaymentMethod, req.PaymentMethodAlt))
	if !ok {
		writeError(c, domain.ValidationError{Field: "payment_method", Msg: "unknown payment method"})
		return
	}

	b, err := h.service.UpdatePaymentMethod(c.Request.Context(), c.Param("id"), method, requesterFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	status, ok := domain.ParseBookingStatus(req.Status)
	if !ok {
		writeError(c, domain.ValidationError{Field: "status", Msg: "unknown booking status"})
		return
	}

	b, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
