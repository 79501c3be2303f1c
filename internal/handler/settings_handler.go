package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ggz/smsbridge/internal/domain"
)

// SettingsStore reads and replaces the pipeline configuration. Updates are
// whole-value swaps observed only by events accepted afterwards.
type SettingsStore interface {
	Snapshot() domain.Settings
	Update(next domain.Settings) error
}

type SettingsHandler struct {
	store SettingsStore
}

func NewSettingsHandler(store SettingsStore) (*SettingsHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	return &SettingsHandler{store: store}, nil
}

func RegisterSettingsRoutes(router fiber.Router, store SettingsStore) error {
	h, err := NewSettingsHandler(store)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/settings", h.GetSettings)
	v1.Put("/settings", h.UpdateSettings)

	return nil
}

type emailPayload struct {
	Host      string `json:"host"`
	Port      string `json:"port"`
	SSL       bool   `json:"ssl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Recipient string `json:"recipient"`
}

type settingsPayload struct {
	Listening         bool         `json:"listening"`
	SenderFilter      string       `json:"senderFilter"`
	CodePattern       string       `json:"codePattern"`
	Transport         string       `json:"transport"`
	WebhookURL        string       `json:"webhookUrl"`
	Email             emailPayload `json:"email"`
	EncryptionEnabled bool         `json:"encryptionEnabled"`
	PublicKey         string       `json:"publicKey"`
	NotifyOnNewCode   bool         `json:"notifyOnNewCode"`
}

func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(toSettingsPayload(h.store.Snapshot()))
}

// UpdateSettings replaces the configuration wholesale. Deliveries already
// in flight keep the snapshot they started with.
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var payload settingsPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	next, err := payload.toDomain()
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.store.Update(next); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toSettingsPayload(h.store.Snapshot()))
}

func (p settingsPayload) toDomain() (domain.Settings, error) {
	transport, err := domain.ParseTransportKindFromString(p.Transport)
	if err != nil {
		return domain.Settings{}, err
	}

	return domain.Settings{
		Listening:    p.Listening,
		SenderFilter: p.SenderFilter,
		CodePattern:  p.CodePattern,
		Transport:    transport,
		Email: domain.EmailSettings{
			Host:      p.Email.Host,
			Port:      p.Email.Port,
			SSL:       p.Email.SSL,
			Username:  p.Email.Username,
			Password:  p.Email.Password,
			Recipient: p.Email.Recipient,
		},
		WebhookURL:        p.WebhookURL,
		EncryptionEnabled: p.EncryptionEnabled,
		PublicKey:         p.PublicKey,
		NotifyOnNewCode:   p.NotifyOnNewCode,
	}, nil
}

func toSettingsPayload(s domain.Settings) settingsPayload {
	return settingsPayload{
		Listening:    s.Listening,
		SenderFilter: s.SenderFilter,
		CodePattern:  s.CodePattern,
		Transport:    s.Transport.String(),
		WebhookURL:   s.WebhookURL,
		Email: emailPayload{
			Host:      s.Email.Host,
			Port:      s.Email.Port,
			SSL:       s.Email.SSL,
			Username:  s.Email.Username,
			Password:  s.Email.Password,
			Recipient: s.Email.Recipient,
		},
		EncryptionEnabled: s.EncryptionEnabled,
		PublicKey:         s.PublicKey,
		NotifyOnNewCode:   s.NotifyOnNewCode,
	}
}
