package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/remote"
	"bookline/backend/internal/service/booking"
	"bookline/backend/internal/store"
)

type signedLink struct {
	Username  string `json:"username" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type attendeePayload struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Timezone string `json:"timezone" validate:"required,timezone"`
}

type availabilityRequest struct {
	signedLink
}

type slotPayload struct {
	StartTime     time.Time `json:"start_time"`
	Duration      int       `json:"duration"`
	BookingStatus string    `json:"booking_status"`
}

type availabilityResponse struct {
	Title               string        `json:"title"`
	Details             string        `json:"details"`
	OwnerName           string        `json:"owner_name"`
	Timezone            string        `json:"timezone"`
	SlotDuration        int           `json:"slot_duration"`
	BookingConfirmation bool          `json:"booking_confirmation"`
	Slots               []slotPayload `json:"slots"`
}

type bookingRequest struct {
	signedLink
	StartTime time.Time       `json:"start_time" validate:"required"`
	Duration  int             `json:"duration" validate:"required,min=1"`
	Attendee  attendeePayload `json:"attendee" validate:"required"`
}

type decisionRequest struct {
	signedLink
	SlotID    uuid.UUID `json:"slot_id" validate:"required"`
	Token     string    `json:"token" validate:"required"`
	Confirmed *bool     `json:"confirmed" validate:"required"`
}

type requestResponse struct {
	SlotID        uuid.UUID `json:"slot_id"`
	StartTime     time.Time `json:"start_time"`
	Duration      int       `json:"duration"`
	BookingStatus string    `json:"booking_status"`
	Pending       bool      `json:"pending"`
}

type decisionResponse struct {
	Confirmed bool            `json:"confirmed"`
	Slot      slotPayload     `json:"slot"`
	Attendee  attendeePayload `json:"attendee"`
}

var errNotFound = echo.Map{"error": "not found"}

// handleAvailability resolves a signed public link to the subscriber's
// active schedule and returns the bookable view.
func (s *Server) handleAvailability(c echo.Context) error {
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()
	sub, schedule, err := s.resolveLink(c, req.signedLink)
	if err != nil {
		return c.JSON(http.StatusNotFound, errNotFound)
	}

	slots, err := s.avail.Openings(ctx, schedule)
	if err != nil {
		return s.availabilityError(c, err)
	}

	resp := availabilityResponse{
		Title:               schedule.Name,
		Details:             schedule.Details,
		OwnerName:           sub.Name,
		Timezone:            schedule.Timezone,
		SlotDuration:        schedule.SlotDuration,
		BookingConfirmation: schedule.BookingConfirmation,
		Slots:               make([]slotPayload, 0, len(slots)),
	}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, slotPayload{
			StartTime:     slot.StartTime.UTC(),
			Duration:      slot.Duration,
			BookingStatus: string(slot.BookingStatus),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// handleRequest books a slot for an attendee, or holds it for the host's
// decision when confirmation is on.
func (s *Server) handleRequest(c echo.Context) error {
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()
	_, schedule, err := s.resolveLink(c, req.signedLink)
	if err != nil {
		return c.JSON(http.StatusNotFound, errNotFound)
	}

	attendee := domain.Attendee{
		Email:    req.Attendee.Email,
		Name:     req.Attendee.Name,
		Timezone: req.Attendee.Timezone,
	}
	res, err := s.coord.Request(ctx, schedule, attendee, req.StartTime.UTC(), req.Duration)
	if err != nil {
		return s.bookingError(c, err)
	}
	return c.JSON(http.StatusOK, requestResponse{
		SlotID:        res.Slot.ID,
		StartTime:     res.Slot.StartTime.UTC(),
		Duration:      res.Slot.Duration,
		BookingStatus: string(res.Slot.BookingStatus),
		Pending:       res.Pending,
	})
}

// handleDecision settles a held slot with the token from the host's mail.
func (s *Server) handleDecision(c echo.Context) error {
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()
	_, schedule, err := s.resolveLink(c, req.signedLink)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidLink) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid link"})
		}
		return c.JSON(http.StatusNotFound, errNotFound)
	}

	res, err := s.coord.Decide(ctx, schedule, req.SlotID, req.Token, *req.Confirmed)
	if err != nil {
		return s.bookingError(c, err)
	}
	return c.JSON(http.StatusOK, decisionResponse{
		Confirmed: res.Confirmed,
		Slot: slotPayload{
			StartTime:     res.Slot.StartTime.UTC(),
			Duration:      res.Slot.Duration,
			BookingStatus: string(res.Slot.BookingStatus),
		},
		Attendee: attendeePayload{
			Email:    res.Attendee.Email,
			Name:     res.Attendee.Name,
			Timezone: res.Attendee.Timezone,
		},
	})
}

// resolveLink verifies the signature against the request path and loads
// the subscriber's active schedule.
func (s *Server) resolveLink(c echo.Context, link signedLink) (domain.Subscriber, domain.Schedule, error) {
	ctx := c.Request().Context()
	sub, err := s.store.SubscriberByUsername(ctx, link.Username)
	if err != nil {
		return domain.Subscriber{}, domain.Schedule{}, err
	}
	if !booking.VerifyLink(s.cfg.SignedSecret, sub.ShortLinkHash, c.Request().URL.Path, link.Signature) {
		return domain.Subscriber{}, domain.Schedule{}, booking.ErrInvalidLink
	}
	schedule, err := s.store.ActiveScheduleForSubscriber(ctx, sub.ID)
	if err != nil {
		return domain.Subscriber{}, domain.Schedule{}, err
	}
	return sub, schedule, nil
}

func (s *Server) availabilityError(c echo.Context, err error) error {
	if errors.Is(err, remote.ErrUnavailable) {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "calendar unavailable"})
	}
	s.log.Error("availability failed", slog.Any("err", err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func (s *Server) bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound), errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errNotFound)
	case errors.Is(err, booking.ErrSlotAlreadyTaken):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "slot already taken"})
	case errors.Is(err, remote.ErrUnavailable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "calendar unavailable"})
	default:
		s.log.Error("booking failed", slog.Any("err", err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
