package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. This service is not the registration
// surface; it holds the minimal record the admission flow needs.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	MRN       string     `db:"mrn" json:"mrn"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex       string     `db:"sex" json:"sex,omitempty"`
	Phone     string     `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Draft carries the fields needed to create a patient inline during
// admission when no existing reference is supplied.
type Draft struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Sex       string     `json:"sex,omitempty"`
	Phone     string     `json:"phone,omitempty"`
}
