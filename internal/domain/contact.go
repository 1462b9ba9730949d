package domain

import "time"

// ContactStatus values written by the outreach pipeline.
const (
	ContactStatusNew       = "new"
	ContactStatusContacted = "contacted"
)

// Contact is a person at a company, reachable by email.
type Contact struct {
	ID                  string     `json:"id" db:"id"`
	UserID              string     `json:"user_id" db:"user_id"`
	CompanyID           *string    `json:"company_id" db:"company_id"`
	Name                string     `json:"name" db:"name"`
	Role                string     `json:"role" db:"role"`
	Email               string     `json:"email" db:"email"`
	ContactStatus       string     `json:"contact_status" db:"contact_status"`
	TotalCommunications int        `json:"total_communications" db:"total_communications"`
	LastContactedAt     *time.Time `json:"last_contacted_at" db:"last_contacted_at"`
}

// FirstName returns the first whitespace-separated token of the name.
func (c *Contact) FirstName() string {
	for i, r := range c.Name {
		if r == ' ' {
			return c.Name[:i]
		}
	}
	return c.Name
}

// Company is the organization a contact belongs to.
type Company struct {
	ID          string `json:"id" db:"id"`
	UserID      string `json:"user_id" db:"user_id"`
	Name        string `json:"name" db:"name"`
	Website     string `json:"website" db:"website"`
	Description string `json:"description" db:"description"`
}

// User is the account that owns campaigns and sends as the sender.
type User struct {
	ID       string `json:"id" db:"id"`
	Email    string `json:"email" db:"email"`
	Username string `json:"username" db:"username"`
}

// DisplayName returns the best name to show as the sender.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
