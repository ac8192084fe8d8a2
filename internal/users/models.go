package users

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is a registered person record.
type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Active    bool      `json:"active"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser is the registration payload accepted by the API.
type NewUser struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"required,max=50"`
	Active    bool   `json:"active"`
	Country   string `json:"country" validate:"max=100"`
}

// NameCount is the number of users sharing an exact first and last name.
type NameCount struct {
	FirstName string
	LastName  string
	Count     int
}

// Duplicate is a case-insensitively merged name group.
// It is encoded as the two element JSON array ["Name", count].
type Duplicate struct {
	Name  string
	Count int
}

func (d Duplicate) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{d.Name, d.Count})
}

func (d *Duplicate) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("duplicate: expected [name, count], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &d.Name); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &d.Count)
}
