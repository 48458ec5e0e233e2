package domain

import "time"

// ============================================================
// Clients
// ============================================================

// Client statuses as stored in the clients table.
const (
	ClientStatusActive   = "ativo"
	ClientStatusInactive = "inativo"
)

// Client profile types.
const (
	ProfileRegular    = "regular"
	ProfileOccasional = "occasional"
	ProfileVIP        = "vip"
)

// Client is a pharmacy customer owned by the staff member who created it.
type Client struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Email       *string   `json:"email,omitempty"`
	Status      string    `json:"status"`
	Tags        []string  `json:"tags"`
	ProfileType string    `json:"profile_type"`
	BirthDate   *string   `json:"birth_date,omitempty"` // yyyy-mm-dd
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClientInput is the payload for creating a client.
type ClientInput struct {
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Email       *string  `json:"email,omitempty"`
	Status      string   `json:"status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ProfileType string   `json:"profile_type,omitempty"`
	BirthDate   *string  `json:"birth_date,omitempty"`
}

// ClientPatch carries the fields to change; nil fields are left untouched.
type ClientPatch struct {
	Name        *string   `json:"name,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	ProfileType *string   `json:"profile_type,omitempty"`
	BirthDate   *string   `json:"birth_date,omitempty"`
}

// Row converts the patch to the column map sent to the store.
func (p *ClientPatch) Row() map[string]any {
	row := map[string]any{}
	if p.Name != nil {
		row["name"] = *p.Name
	}
	if p.Phone != nil {
		row["phone"] = *p.Phone
	}
	if p.Email != nil {
		row["email"] = *p.Email
	}
	if p.Status != nil {
		row["status"] = *p.Status
	}
	if p.Tags != nil {
		row["tags"] = *p.Tags
	}
	if p.ProfileType != nil {
		row["profile_type"] = *p.ProfileType
	}
	if p.BirthDate != nil {
		row["birth_date"] = *p.BirthDate
	}
	return row
}

// ValidClientStatus reports whether s is one of the two stored statuses.
func ValidClientStatus(s string) bool {
	return s == ClientStatusActive || s == ClientStatusInactive
}

// ValidProfileType reports whether s is a known client profile.
func ValidProfileType(s string) bool {
	switch s {
	case ProfileRegular, ProfileOccasional, ProfileVIP:
		return true
	}
	return false
}
