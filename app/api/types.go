package api

import (
	"context"
	"time"

	"github.com/vportnov/repostq/app/database"
	"github.com/vportnov/repostq/app/profiles"
	"github.com/vportnov/repostq/app/scheduler"
)

// SchedulerService is the slice of the scheduling service the HTTP layer
// depends on.
type SchedulerService interface {
	AssignSlot(ctx context.Context, contentID, candidateID int64) (*database.Reservation, error)
	Scrub(ctx context.Context) (*scheduler.ScrubReport, error)
	Sweep(ctx context.Context, deadDays, staleDays int, preview bool) (*scheduler.SweepReport, error)
	QueueSummary() (*scheduler.QueueSummary, error)
	Reschedule(ctx context.Context, reservationID int64, newTime time.Time) (*database.Reservation, error)
	Cancel(ctx context.Context, reservationID int64) (*database.Reservation, error)
}

var _ SchedulerService = (*scheduler.Service)(nil)

type Handler struct {
	schedulerSvc SchedulerService
	contentRepo  database.ContentRepository
	healthRepo   database.HealthRepository
	profileCache *profiles.Cache
	deadDays     int
	staleDays    int
}
