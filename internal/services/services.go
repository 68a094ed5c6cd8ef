// Package services implements the engine's ports on top of the store.
//
// BookingService, SurveyService, SalesService and AgentService satisfy
// flow.BookingPort, flow.SurveyPort, flow.InventoryPort and flow.AgentPort
// respectively. The HTTP API uses the same services for its admin endpoints.
package services

import (
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time. Tests replace it to get stable timestamps.
type Clock func() time.Time

func newID() string {
	return uuid.NewString()
}
