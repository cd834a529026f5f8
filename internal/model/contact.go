package model

import (
	"time"
)

// Contact represents a person who reached out to a firm. Contacts are
// deduplicated per organization by phone or email at lead-creation time.
//
// Canonical-phone invariant: once PhoneE164 is set it must never be
// overwritten with an empty value. The repository enforces this on update.
type Contact struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	OrgID     string    `json:"org_id" gorm:"index;type:text" validate:"required"`
	Name      string    `json:"name,omitempty" gorm:"type:text"`
	PhoneE164 string    `json:"phone_e164,omitempty" gorm:"index;type:text"`
	Email     string    `json:"email,omitempty" gorm:"index;type:text"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Contact model.
func (Contact) TableName() string {
	return "contacts"
}

// HasPhone reports whether the contact has a usable callback number.
func (c Contact) HasPhone() bool {
	return c.PhoneE164 != ""
}

// HasEmail reports whether the contact has a usable email address.
func (c Contact) HasEmail() bool {
	return c.Email != ""
}
