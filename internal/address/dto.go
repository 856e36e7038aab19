package address

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
)

// CreateInput is the payload for adding a shipping address.
type CreateInput struct {
	Label      string  `json:"label" validate:"required,max=64"`
	Recipient  string  `json:"recipient" validate:"required,max=128"`
	Phone      string  `json:"phone" validate:"required,max=32"`
	Line1      string  `json:"line1" validate:"required,max=255"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=255"`
	City       string  `json:"city" validate:"required,max=128"`
	Province   string  `json:"province" validate:"required,max=128"`
	PostalCode string  `json:"postal_code" validate:"required,max=16"`
	Country    string  `json:"country" validate:"required,len=2"`
}

// DTO is the API representation of an address.
type DTO struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"created_at"`
}

func (in CreateInput) toModel(userID uuid.UUID) *models.Address {
	var line2 *string
	if in.Line2 != nil {
		if trimmed := strings.TrimSpace(*in.Line2); trimmed != "" {
			line2 = &trimmed
		}
	}
	return &models.Address{
		UserID:     userID,
		Label:      strings.TrimSpace(in.Label),
		Recipient:  strings.TrimSpace(in.Recipient),
		Phone:      strings.TrimSpace(in.Phone),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      line2,
		City:       strings.TrimSpace(in.City),
		Province:   strings.TrimSpace(in.Province),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
	}
}

func toDTO(m models.Address) DTO {
	return DTO{
		ID:         m.ID,
		Label:      m.Label,
		Recipient:  m.Recipient,
		Phone:      m.Phone,
		Line1:      m.Line1,
		Line2:      m.Line2,
		City:       m.City,
		Province:   m.Province,
		PostalCode: m.PostalCode,
		Country:    m.Country,
		CreatedAt:  m.CreatedAt,
	}
}
