package models

// User represents a row in the users table.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never serialize
	College      string `json:"college"`
	Degree       string `json:"degree"`
	Years        string `json:"years"`
}

// Profile holds the user-editable part of a User.
type Profile struct {
	College string `validate:"max=256"`
	Degree  string `validate:"max=128"`
	Years   string `validate:"max=64"`
}

// SignupForm is the form body for POST /signup.
type SignupForm struct {
	Email    string `validate:"required,email,max=150"`
	Password string `validate:"required,max=72"`
	Profile
}

// LoginForm is the form body for POST /login.
type LoginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}
