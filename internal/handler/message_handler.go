package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ggz/smsbridge/internal/domain"
	"github.com/ggz/smsbridge/internal/pipeline"
)

// BatchAcceptor evaluates a batch of inbound message parts against the
// current configuration and queues at most one delivery.
type BatchAcceptor interface {
	AcceptBatch(ctx context.Context, events []domain.Event) (pipeline.Decision, error)
}

type MessageHandler struct {
	gate BatchAcceptor
}

func NewMessageHandler(gate BatchAcceptor) (*MessageHandler, error) {
	if gate == nil {
		return nil, fmt.Errorf("batch acceptor is required")
	}
	return &MessageHandler{gate: gate}, nil
}

func RegisterMessageRoutes(router fiber.Router, gate BatchAcceptor) error {
	h, err := NewMessageHandler(gate)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/messages", h.SubmitMessages)

	return nil
}

type inboundMessage struct {
	Sender     string `json:"sender"`
	Body       string `json:"body"`
	ObservedAt int64  `json:"observedAt"`
}

type submitMessagesRequest struct {
	Messages []inboundMessage `json:"messages"`
}

// SubmitMessages accepts either a batch envelope or a bare single message
// object. Messages delivered together in one request form one batch.
func (h *MessageHandler) SubmitMessages(c *fiber.Ctx) error {
	events, err := parseInboundMessages(c)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "at least one message is required")
	}

	decision, err := h.gate.AcceptBatch(c.Context(), events)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(decision)
}

func parseInboundMessages(c *fiber.Ctx) ([]domain.Event, error) {
	var envelope submitMessagesRequest
	if err := c.BodyParser(&envelope); err == nil && len(envelope.Messages) > 0 {
		return toEvents(envelope.Messages), nil
	}

	var single inboundMessage
	if err := c.BodyParser(&single); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if single.Body == "" && single.Sender == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	return toEvents([]inboundMessage{single}), nil
}

func toEvents(messages []inboundMessage) []domain.Event {
	events := make([]domain.Event, 0, len(messages))
	for _, message := range messages {
		events = append(events, domain.NewEvent(message.Sender, message.Body, message.ObservedAt))
	}
	return events
}
