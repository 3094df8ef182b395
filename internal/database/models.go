package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an account. Signup and login cycles keep separate code columns so a
// login code can never complete an email verification and vice versa.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                    uuid.UUID  `bun:"id,pk,type:uuid"`
	Email                 string     `bun:"email,notnull,unique"`
	Username              string     `bun:"username,notnull,unique"`
	Name                  string     `bun:"name,notnull"`
	PasswordHash          string     `bun:"password_hash,notnull"`
	Role                  string     `bun:"role,notnull,default:'user'"`
	EmailVerified         bool       `bun:"email_verified,notnull,default:false"`
	VerificationCodeHash  *string    `bun:"verification_code_hash"`
	VerificationExpiresAt *time.Time `bun:"verification_expires_at"`
	LoginCodeHash         *string    `bun:"login_code_hash"`
	LoginCodeExpiresAt    *time.Time `bun:"login_code_expires_at"`
	CreatedAt             time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt             time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

type InquiryMessage struct {
	bun.BaseModel `bun:"table:inquiry_messages,alias:im"`

	ID            uuid.UUID  `bun:"id,pk,type:uuid"`
	Email         string     `bun:"email,notnull,unique"`
	Name          string     `bun:"name,notnull"`
	Subject       string     `bun:"subject,notnull"`
	Message       string     `bun:"message,notnull"`
	Verified      bool       `bun:"verified,notnull,default:false"`
	CodeHash      *string    `bun:"code_hash"`
	CodeExpiresAt *time.Time `bun:"code_expires_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

type CollaborationRequest struct {
	bun.BaseModel `bun:"table:collaboration_requests,alias:cr"`

	ID            uuid.UUID  `bun:"id,pk,type:uuid"`
	Email         string     `bun:"email,notnull,unique"`
	Name          string     `bun:"name,notnull"`
	Organization  string     `bun:"organization,notnull"`
	Website       string     `bun:"website,notnull"`
	Proposal      string     `bun:"proposal,notnull"`
	Verified      bool       `bun:"verified,notnull,default:false"`
	CodeHash      *string    `bun:"code_hash"`
	CodeExpiresAt *time.Time `bun:"code_expires_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}
