package drivers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// DriverDTO is the transport shape for drivers. The Telegram chat id stays
// internal; clients only see whether the bot link exists.
type DriverDTO struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	Phone          string             `json:"phone"`
	Status         enums.DriverStatus `json:"status"`
	TelegramLinked bool               `json:"telegram_linked"`
	LastSeenAt     time.Time          `json:"last_seen_at"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func FromModel(d *models.Driver) *DriverDTO {
	if d == nil {
		return nil
	}

	return &DriverDTO{
		ID:             d.ID,
		Name:           d.Name,
		Phone:          d.Phone,
		Status:         d.Status,
		TelegramLinked: d.TelegramChatID != nil,
		LastSeenAt:     d.LastSeenAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// FromModels converts a driver slice for list responses.
func FromModels(rows []models.Driver) []DriverDTO {
	out := make([]DriverDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
