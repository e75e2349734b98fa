package municipality

import (
	"time"

	"github.com/google/uuid"
)

// Municipality is a parent entity resolved by case-insensitive name.
type Municipality struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status is the per-day operations-center status of one municipality,
// keyed on (day, municipality_id).
type Status struct {
	ID             int64
	Day            string
	MunicipalityID uuid.UUID
	Municipality   string
	COCOpen        bool
	Phone          string
	Notes          string
	UpdatedAt      time.Time
}

// Contact is one entry of a municipality's contact list. Writes replace the
// whole list, they never merge.
type Contact struct {
	ID             int64
	MunicipalityID uuid.UUID
	Name           string
	Role           string
	Phone          string
	Email          string
}
