package models

import (
	"time"
)

// User is an authenticated account. Passwords are stored as bcrypt hashes.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Language     string    `db:"language" json:"language"` // "es" or "en"
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserProfile is the digital-twin profile used to condition generated
// answers. The generation core receives a snapshot per request and never
// mutates the stored entity.
type UserProfile struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	Language     string    `db:"language" json:"language"`
	Demographics JSONB     `db:"demographics" json:"demographics"`
	Preferences  JSONB     `db:"preferences" json:"preferences"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultTone is used when the profile carries no tone preference.
const DefaultTone = "Professional"

// Tone returns the preferred answer tone, falling back to DefaultTone.
func (p *UserProfile) Tone() string {
	if p == nil || p.Preferences == nil {
		return DefaultTone
	}
	if tone, ok := p.Preferences["tone"].(string); ok && tone != "" {
		return tone
	}
	return DefaultTone
}

// Interests returns the interests list from the preferences mapping, if any.
func (p *UserProfile) Interests() []string {
	if p == nil || p.Preferences == nil {
		return nil
	}
	raw, ok := p.Preferences["interests"].([]any)
	if !ok {
		return nil
	}
	interests := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			interests = append(interests, s)
		}
	}
	return interests
}

// Snapshot returns a copy of the profile safe to hand to the generation
// core. The open mappings are copied shallowly one level deep, which covers
// every write path the core has.
func (p *UserProfile) Snapshot() *UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Demographics != nil {
		cp.Demographics = make(JSONB, len(p.Demographics))
		for k, v := range p.Demographics {
			cp.Demographics[k] = v
		}
	}
	if p.Preferences != nil {
		cp.Preferences = make(JSONB, len(p.Preferences))
		for k, v := range p.Preferences {
			cp.Preferences[k] = v
		}
	}
	return &cp
}

// ImageAttachment is an inline image carried by a single request.
type ImageAttachment struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 payload
}

// ResponseRecord is what the history store persists per answered question.
// The answer text itself is intentionally absent: the client retains it, and
// keeping it out of the table bounds storage growth.
type ResponseRecord struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Question  string    `db:"question" json:"question"`
	ModelUsed string    `db:"model_used" json:"model_used"`
	Status    string    `db:"status" json:"status"` // "ok" or "error"
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Response record statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
