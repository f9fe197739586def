package model

import (
	"fmt"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	PhotoURL     string    `json:"photoURL"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CurrentUser is what observers of the signed-in account see.
type CurrentUser struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
}

func (u User) Current() CurrentUser {
	return CurrentUser{
		UID:         u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhotoURL:    u.PhotoURL,
	}
}

type Profile struct {
	DisplayName string     `mapstructure:"displayName" json:"displayName"`
	Bio         string     `mapstructure:"bio" json:"bio"`
	UpdatedAt   *time.Time `mapstructure:"updatedAt" json:"updatedAt,omitempty"`
}

func DecodeProfile(doc Document) (Profile, error) {
	var p Profile
	if err := decodeFields(doc.Fields, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", doc.ID, err)
	}
	return p, nil
}
