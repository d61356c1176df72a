package models

import (
	"errors"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUser(id, username, email, passwordHash string) *User {
	return &User{ID: id, Username: username, Email: email, Password: passwordHash}
}

func ValidateUser(user *User) error {
	if user.Username == "" || user.Password == "" || user.Email == "" {
		return errors.New("empty fields detected")
	}
	return nil
}

// PublicUser is the wire shape of a user without credential fields.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email}
}
