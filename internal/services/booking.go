package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

var _ flow.BookingPort = (*BookingService)(nil)

// BookingService stores appointments taken through scheduling nodes.
type BookingService struct {
	repo store.BookingRepo
	now  Clock
}

// NewBookingService creates a BookingService over repo.
func NewBookingService(repo store.BookingRepo) *BookingService {
	return &BookingService{repo: repo, now: time.Now}
}

// SetClock overrides the time source.
func (s *BookingService) SetClock(now Clock) { s.now = now }

func (s *BookingService) IsSlotBooked(ctx context.Context, slotTime, slotDate, workflowID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.repo.IsSlotBooked(slotTime, slotDate, workflowID)
}

// CreateBooking stores an active booking. It returns false without error
// when the slot already holds an active booking.
func (s *BookingService) CreateBooking(ctx context.Context, userID, code, slotTime, slotDate, workflowID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b := &models.Booking{
		ID:         newID(),
		UserID:     userID,
		Code:       strings.ToUpper(code),
		Time:       slotTime,
		Date:       slotDate,
		WorkflowID: workflowID,
		Status:     models.BookingStatusActive,
		CreatedAt:  s.now(),
	}
	created, err := s.repo.CreateBooking(b)
	if err != nil {
		return false, fmt.Errorf("create booking: %w", err)
	}
	if !created {
		slog.Warn("BookingService.CreateBooking: slot already booked", "userID", userID, "date", slotDate, "time", slotTime)
		return false, nil
	}
	slog.Info("BookingService.CreateBooking: booked", "userID", userID, "code", b.Code, "date", slotDate, "time", slotTime)
	return true, nil
}

func (s *BookingService) GetBookingByCode(ctx context.Context, code, userID string) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.repo.GetBookingByCode(strings.ToUpper(code), userID)
}

func (s *BookingService) CancelBooking(ctx context.Context, code, userID, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := s.repo.CancelBooking(strings.ToUpper(code), userID, reason, s.now())
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	if ok {
		slog.Info("BookingService.CancelBooking: cancelled", "userID", userID, "code", code)
	}
	return ok, nil
}

// List returns the bookings of workflowID, or every booking when it is empty.
func (s *BookingService) List(workflowID string) ([]models.Booking, error) {
	return s.repo.ListBookings(workflowID)
}
