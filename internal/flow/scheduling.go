package flow

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/util"
)

var firstNumber = regexp.MustCompile(`\d+`)

// cancelKeywords switch the scheduling dialog into booking cancellation.
var cancelKeywords = map[string]bool{
	"cancelar": true,
	"cancel":   true,
	"não":      true,
	"nao":      true,
	"no":       true,
	"n":        true,
}

func isCancelKeyword(text string) bool {
	return cancelKeywords[strings.ToLower(strings.TrimSpace(text))]
}

// enterScheduling offers the bookable slots of node. It reports whether the
// pass parked; with no slot left it emits the no-slots text and the caller
// moves on.
func (t *turn) enterScheduling(node *models.Node, d *models.SchedulingData) (bool, error) {
	slots, err := t.availableSlots(d)
	if err != nil {
		return false, err
	}
	if len(slots) == 0 {
		slog.Debug("turn.enterScheduling: no slots available", "userID", t.st.UserID, "node", node.ID)
		t.say(orDefault(d.NoSlotsMessage, defaultNoSlots))
		return false, nil
	}
	t.st.Scheduling = &models.SchedulingState{Slots: slots, NodeID: node.ID}
	t.say(renderSlots(d, slots))
	t.park(node.ID)
	return true, nil
}

// availableSlots filters the declared slots down to ones not booked yet.
func (t *turn) availableSlots(d *models.SchedulingData) ([]models.TimeSlot, error) {
	if len(d.AvailableSlots) == 0 {
		return nil, nil
	}
	if t.engine.booking == nil {
		return nil, fmt.Errorf("scheduling: %w", ErrPortUnavailable)
	}
	var out []models.TimeSlot
	for _, slot := range d.AvailableSlots {
		if !slot.IsDeclaredAvailable() {
			continue
		}
		ctx, cancel := t.portCtx()
		booked, err := t.engine.booking.IsSlotBooked(ctx, slot.Time, slot.Date, t.wf.ID)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("check slot %s %s: %w", slot.Date, slot.Time, err)
		}
		if !booked {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (t *turn) schedulingNode(nodeID string) (*models.Node, *models.SchedulingData) {
	node := t.wf.Node(nodeID)
	if node == nil {
		return nil, nil
	}
	d, _ := node.Data.(*models.SchedulingData)
	return node, d
}

func (t *turn) handleScheduling(text string) error {
	sc := t.st.Scheduling
	node, d := t.schedulingNode(sc.NodeID)
	if node == nil || d == nil {
		slog.Warn("turn.handleScheduling: scheduling node missing, ending conversation", "userID", t.st.UserID, "node", sc.NodeID)
		t.finish(true)
		return nil
	}

	if isCancelKeyword(text) {
		slog.Debug("turn.handleScheduling: entering cancellation", "userID", t.st.UserID, "node", node.ID)
		t.st.Cancellation = &models.CancellationState{WaitingCode: true, NodeID: node.ID}
		t.say(askCancelCode)
		t.park(node.ID)
		return nil
	}

	idx := -1
	if m := firstNumber.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			idx = n - 1
		}
	}
	if idx < 0 || idx >= len(sc.Slots) {
		t.say(invalidSlot + "\n\n" + slotList(sc.Slots))
		return nil
	}
	slot := sc.Slots[idx]

	if t.engine.booking == nil {
		return fmt.Errorf("scheduling: %w", ErrPortUnavailable)
	}
	code := util.GenerateBookingCode()
	ctx, cancel := t.portCtx()
	ok, err := t.engine.booking.CreateBooking(ctx, t.st.UserID, code, slot.Time, slot.Date, t.wf.ID)
	cancel()
	if err != nil || !ok {
		slog.Warn("turn.handleScheduling: booking failed", "error", err, "userID", t.st.UserID, "date", slot.Date, "time", slot.Time)
		t.say(bookingFailed + "\n\n" + slotList(sc.Slots))
		return nil
	}

	slog.Info("turn.handleScheduling: booking created", "userID", t.st.UserID, "workflowID", t.wf.ID, "code", code)
	t.say(renderBookingConfirmation(d, code, slot))
	t.st.Scheduling = nil
	return t.advance(t.next(node.ID))
}

func (t *turn) handleCancellation(text string) error {
	c := t.st.Cancellation
	if t.engine.booking == nil {
		return fmt.Errorf("cancellation: %w", ErrPortUnavailable)
	}

	if c.WaitingCode {
		code := strings.ToUpper(strings.TrimSpace(text))
		ctx, cancel := t.portCtx()
		bk, err := t.engine.booking.GetBookingByCode(ctx, code, t.st.UserID)
		cancel()
		if err != nil {
			return fmt.Errorf("lookup booking: %w", err)
		}
		if bk == nil {
			t.say(cancelCodeNotFound)
			t.st.WaitingForInput = true
			return nil
		}
		c.WaitingCode = false
		c.WaitingReason = true
		c.Code = code
		t.say(fmt.Sprintf(askCancelReason, formatDate(bk.Date), bk.Time))
		t.st.WaitingForInput = true
		return nil
	}

	reason := strings.TrimSpace(text)
	if utf8.RuneCountInString(reason) < minCancelReasonRunes {
		t.say(cancelReasonTooShort)
		t.st.WaitingForInput = true
		return nil
	}

	ctx, cancel := t.portCtx()
	ok, err := t.engine.booking.CancelBooking(ctx, c.Code, t.st.UserID, reason)
	cancel()
	if err != nil || !ok {
		slog.Warn("turn.handleCancellation: cancel failed", "error", err, "userID", t.st.UserID, "code", c.Code)
		t.st.Cancellation = nil
		t.say(cancelFailed)
		if t.st.Scheduling != nil {
			t.say(slotPrompt(t.st.Scheduling.Slots))
		}
		t.st.WaitingForInput = true
		return nil
	}

	slog.Info("turn.handleCancellation: booking cancelled", "userID", t.st.UserID, "code", c.Code)
	t.say(cancelConfirmed)
	nodeID := c.NodeID
	t.st.Cancellation = nil
	t.st.Scheduling = nil
	return t.advance(t.next(nodeID))
}

func slotPrompt(slots []models.TimeSlot) string {
	return defaultSchedulingPrompt + "\n\n" + slotList(slots) + "\n\n" + schedulingFooter
}
