package staff

import (
	"time"

	"github.com/google/uuid"
)

// Doctor maps to the doctor table.
type Doctor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Specialty string    `db:"specialty" json:"specialty,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Account maps to the account table. Accounts are login identities for an
// external auth provider; no credentials are stored here.
type Account struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Role      string     `db:"role" json:"role"`
	DoctorID  *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

const (
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
)
