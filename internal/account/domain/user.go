package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2id encoded (legacy bcrypt until next login)
	Role         Role
	IsVerified   bool
	MFAEnabled   bool
	MFASecret    *string // TOTP secret, base32 (nullable)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
