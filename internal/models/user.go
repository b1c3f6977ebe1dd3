// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a member of the social network.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email"`
	Password   string    `gorm:"not null" json:"-"`
	Name       string    `json:"name"`
	Bio        string    `json:"bio"`
	Avatar     string    `json:"avatar"`
	Location   string    `json:"location"`
	Website    string    `json:"website"`
	Followers  int       `gorm:"not null;default:0" json:"followers"`
	Following  int       `gorm:"not null;default:0" json:"following"`
	PostsCount int       `gorm:"column:posts_count;not null;default:0" json:"posts"`
	Verified   bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// UserPatch carries the mutable profile fields of a user. Nil fields are left untouched.
type UserPatch struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Location *string `json:"location,omitempty"`
	Website  *string `json:"website,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Username == nil && p.Email == nil &&
		p.Bio == nil && p.Location == nil && p.Website == nil
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	if p.Website != nil {
		u.Website = *p.Website
	}
}
