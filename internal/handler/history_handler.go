package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ggz/smsbridge/internal/domain"
	"github.com/ggz/smsbridge/internal/store"
)

type HistoryHandler struct {
	log store.AttemptLog
	now func() time.Time
}

func NewHistoryHandler(log store.AttemptLog) (*HistoryHandler, error) {
	if log == nil {
		return nil, fmt.Errorf("attempt log is required")
	}
	return &HistoryHandler{log: log, now: time.Now}, nil
}

func RegisterHistoryRoutes(router fiber.Router, log store.AttemptLog) error {
	h, err := NewHistoryHandler(log)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/history", h.ListHistory)
	v1.Get("/history/:observedAt", h.GetAttempt)
	v1.Delete("/history", h.ClearHistory)
	v1.Post("/history/purge", h.PurgeHistory)

	return nil
}

type attemptResponse struct {
	ObservedAt    int64     `json:"observedAt"`
	Sender        string    `json:"sender"`
	Body          string    `json:"body"`
	Code          *string   `json:"code,omitempty"`
	Transport     string    `json:"transport"`
	Status        string    `json:"status"`
	FailureReason *string   `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type listHistoryResponse struct {
	Data  []attemptResponse `json:"data"`
	Total int               `json:"total"`
}

type purgeHistoryRequest struct {
	OlderThanDays int `json:"olderThanDays"`
}

type purgeHistoryResponse struct {
	Purged int64 `json:"purged"`
}

// ListHistory returns attempt records newest first. ?today=true narrows to
// records observed since local midnight; ?since=<unix millis> sets an
// explicit floor. today wins when both are present.
func (h *HistoryHandler) ListHistory(c *fiber.Ctx) error {
	var (
		records []domain.AttemptRecord
		err     error
	)

	switch {
	case c.QueryBool("today"):
		records, err = h.log.ListSince(c.Context(), h.startOfToday())
	case c.Query("since") != "":
		// Millisecond timestamps overflow int on 32-bit targets, so they
		// are parsed as int64 instead of through QueryInt.
		since, perr := strconv.ParseInt(c.Query("since"), 10, 64)
		if perr != nil || since < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "since must be a non-negative unix millisecond timestamp")
		}
		records, err = h.log.ListSince(c.Context(), since)
	default:
		records, err = h.log.ListAll(c.Context())
	}
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(records))
	for i := range records {
		responses = append(responses, toAttemptResponse(&records[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listHistoryResponse{
		Data:  responses,
		Total: len(responses),
	})
}

func (h *HistoryHandler) GetAttempt(c *fiber.Ctx) error {
	observedAt, perr := strconv.ParseInt(c.Params("observedAt"), 10, 64)
	if perr != nil || observedAt <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "observedAt must be a positive unix millisecond timestamp")
	}

	record, err := h.log.GetByKey(c.Context(), observedAt)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toAttemptResponse(record))
}

func (h *HistoryHandler) ClearHistory(c *fiber.Ctx) error {
	if err := h.log.ClearAll(c.Context()); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HistoryHandler) PurgeHistory(c *fiber.Ctx) error {
	var req purgeHistoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OlderThanDays < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "olderThanDays must be >= 1")
	}

	cutoff := h.now().AddDate(0, 0, -req.OlderThanDays).UnixMilli()
	purged, err := h.log.PurgeOlderThan(c.Context(), cutoff)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(purgeHistoryResponse{Purged: purged})
}

func (h *HistoryHandler) startOfToday() int64 {
	now := h.now()
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()).UnixMilli()
}

func toAttemptResponse(record *domain.AttemptRecord) attemptResponse {
	if record == nil {
		return attemptResponse{}
	}

	return attemptResponse{
		ObservedAt:    record.ObservedAt,
		Sender:        record.Sender,
		Body:          record.Body,
		Code:          record.Code,
		Transport:     record.Transport.String(),
		Status:        record.Status.String(),
		FailureReason: record.FailureReason,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}
