package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vportnov/repostq/app/database"
	"github.com/vportnov/repostq/app/profiles"
	"github.com/vportnov/repostq/app/scheduler"
)

func NewHandler(schedulerSvc SchedulerService, contentRepo database.ContentRepository,
	healthRepo database.HealthRepository, profileCache *profiles.Cache,
	deadDays, staleDays int) *Handler {
	return &Handler{
		schedulerSvc: schedulerSvc,
		contentRepo:  contentRepo,
		healthRepo:   healthRepo,
		profileCache: profileCache,
		deadDays:     deadDays,
		staleDays:    staleDays,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	resp := map[string]interface{}{
		"timestamp":       time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_profiles": h.profileCache.GetCount(),
	}

	if health, err := h.healthRepo.Get(); err == nil {
		resp["last_successful_publish"] = health.LastSuccessfulPublish
		resp["last_successful_ingest"] = health.LastSuccessfulIngest
		resp["consecutive_failed_publishes"] = health.ConsecutiveFailedPublishes
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.contentRepo.GetStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	resp := gin.H{
		"content": gin.H{
			"total":      stats.Total,
			"by_status":  stats.ByStatus,
			"profiles":   stats.Profiles,
			"last_added": stats.LastAdded,
		},
	}

	if summary, err := h.schedulerSvc.QueueSummary(); err == nil {
		resp["queue"] = gin.H{
			"total":          summary.Total,
			"today":          summary.TodayCount,
			"next_7_days":    summary.WeekCount,
			"next_scheduled": summary.NextScheduled,
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) APIGetQueue(c *gin.Context) {
	summary, err := h.schedulerSvc.QueueSummary()
	if err != nil {
		h.respondError(c, "get_queue", err)
		return
	}

	items := make([]gin.H, 0, len(summary.Items))
	for _, res := range summary.Items {
		items = append(items, reservationJSON(res))
	}

	c.JSON(http.StatusOK, gin.H{
		"total":          summary.Total,
		"today":          summary.TodayCount,
		"next_7_days":    summary.WeekCount,
		"next_scheduled": summary.NextScheduled,
		"items":          items,
	})
}

type registerCandidatesRequest struct {
	Candidates []string `json:"candidates" binding:"required,min=1"`
}

// APIRegisterCandidates stores rewritten texts produced by the external
// rewrite service and moves the content item into review.
func (h *Handler) APIRegisterCandidates(c *gin.Context) {
	contentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req registerCandidatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	item, err := h.contentRepo.GetItem(contentID)
	if err != nil {
		h.respondError(c, "get_item", err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Content item not found"})
		return
	}

	ids := make([]int64, 0, len(req.Candidates))
	for _, body := range req.Candidates {
		id, err := h.contentRepo.InsertCandidate(database.RewriteCandidate{
			ContentID: contentID,
			Body:      body,
		})
		if err != nil {
			h.respondError(c, "insert_candidate", err)
			return
		}
		ids = append(ids, id)
	}

	if err := h.contentRepo.UpdateItemStatus(contentID, database.ContentStatusReview); err != nil {
		h.respondError(c, "update_item_status", err)
		return
	}

	slog.Info("Registered rewrite candidates", "content_id", contentID, "count", len(ids))

	c.JSON(http.StatusCreated, gin.H{
		"content_id":    contentID,
		"candidate_ids": ids,
	})
}

// APIApproveCandidate assigns a publish slot for an approved candidate and
// immediately runs a scrub pass so the queue stays consistent after every
// approval.
func (h *Handler) APIApproveCandidate(c *gin.Context) {
	candidateID, ok := parseID(c, "id")
	if !ok {
		return
	}

	candidate, err := h.contentRepo.GetCandidate(candidateID)
	if err != nil {
		h.respondError(c, "get_candidate", err)
		return
	}
	if candidate == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Candidate not found"})
		return
	}

	reservation, err := h.schedulerSvc.AssignSlot(c.Request.Context(), candidate.ContentID, candidateID)
	if err != nil {
		h.respondError(c, "assign_slot", err)
		return
	}

	report, err := h.schedulerSvc.Scrub(c.Request.Context())
	if err != nil {
		h.respondError(c, "scrub", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservation": reservationJSON(*reservation),
		"scrub": gin.H{
			"checked":            report.Checked,
			"duplicates_removed": report.DuplicatesRemoved,
			"rescheduled":        report.Rescheduled,
		},
	})
}

func (h *Handler) APIScrub(c *gin.Context) {
	report, err := h.schedulerSvc.Scrub(c.Request.Context())
	if err != nil {
		h.respondError(c, "scrub", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checked":            report.Checked,
		"duplicates_removed": report.DuplicatesRemoved,
		"rescheduled":        report.Rescheduled,
	})
}

func (h *Handler) APISweep(c *gin.Context) {
	preview := c.Query("preview") == "true" || c.Query("preview") == "1"

	report, err := h.schedulerSvc.Sweep(c.Request.Context(), h.deadDays, h.staleDays, preview)
	if err != nil {
		h.respondError(c, "sweep", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"preview": report.Preview,
		"checked": report.Checked,
		"removed": sweepEntriesJSON(report.Removed),
		"flagged": sweepEntriesJSON(report.Flagged),
	})
}

type rescheduleRequest struct {
	ScheduledFor time.Time `json:"scheduled_for" binding:"required"`
}

func (h *Handler) APIReschedule(c *gin.Context) {
	reservationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	reservation, err := h.schedulerSvc.Reschedule(c.Request.Context(), reservationID, req.ScheduledFor)
	if err != nil {
		h.respondError(c, "reschedule", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservationJSON(*reservation)})
}

func (h *Handler) APICancel(c *gin.Context) {
	reservationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.schedulerSvc.Cancel(c.Request.Context(), reservationID)
	if err != nil {
		h.respondError(c, "cancel", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservationJSON(*reservation)})
}

func (h *Handler) APIListContent(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	items, err := h.contentRepo.GetRecentItems(limit)
	if err != nil {
		h.respondError(c, "get_recent_items", err)
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, item := range items {
		out = append(out, gin.H{
			"id":               item.ID,
			"profile":          item.Profile,
			"title":            item.Title,
			"author_handle":    item.AuthorHandle,
			"link":             item.Link,
			"status":           item.Status,
			"source_timestamp": item.SourceTimestamp,
			"created_at":       item.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items": out,
		"total": len(out),
	})
}

func (h *Handler) respondError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("Request failed", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id parameter"})
		return 0, false
	}
	return id, true
}

func reservationJSON(res database.Reservation) gin.H {
	out := gin.H{
		"id":             res.ID,
		"content_id":     res.ContentID,
		"candidate_id":   res.CandidateID,
		"scheduled_for":  res.ScheduledFor,
		"status":         res.Status,
		"priority_level": res.PriorityLevel,
		"priority_score": res.PriorityScore,
		"retry_count":    res.RetryCount,
	}
	if res.AgeHours != nil {
		out["age_hours"] = *res.AgeHours
	}
	if res.PublishedAt != nil {
		out["published_at"] = res.PublishedAt
	}
	if res.LastError != "" {
		out["last_error"] = res.LastError
	}
	return out
}

func sweepEntriesJSON(entries []scheduler.SweepEntry) []gin.H {
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"reservation_id": e.ReservationID,
			"content_id":     e.ContentID,
			"age_days":       e.AgeDays,
			"priority":       e.Priority,
		})
	}
	return out
}
