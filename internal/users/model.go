package users

import (
	"strconv"
	"strings"
	"time"
)

// State tracks which multi-step dialogue, if any, a user is in.
// The numeric values are what the users.state column stores.
type State int

const (
	StateNone            State = -1
	StateAskNickname     State = 100
	StateInputNickname   State = 101
	StateConfirmNickname State = 102 // reserved, no transition targets it
	StateFeedback        State = 103
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateAskNickname:
		return "ask_nickname"
	case StateInputNickname:
		return "input_nickname"
	case StateConfirmNickname:
		return "confirm_nickname"
	case StateFeedback:
		return "feedback"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// User is a person talking to the bot through the messaging platform.
// Users are created on first contact and never deleted.
type User struct {
	ID           int64     `json:"id"            db:"id"`
	FirstName    string    `json:"first_name"    db:"first_name"`
	LastName     string    `json:"last_name"     db:"last_name"`
	Nickname     string    `json:"nickname"      db:"nickname"`
	FacebookID   string    `json:"facebook_id"   db:"facebook_id"`
	Gender       string    `json:"gender"        db:"gender"`
	Locale       string    `json:"locale"        db:"locale"`
	State        State     `json:"state"         db:"state"`
	IsRegistered bool      `json:"is_registered" db:"is_registered"`
	IsAdmin      bool      `json:"is_admin"      db:"is_admin"`
	USOSToken    string    `json:"-"             db:"usos_token"`
	USOSSecret   string    `json:"-"             db:"usos_secret"`
	USOSCourse   int64     `json:"usos_course"   db:"usos_course"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// DisplayName returns the nickname when set, otherwise the first name.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.FirstName
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Language returns the two-letter language prefix of the locale ("pl_PL" -> "pl").
func (u *User) Language() string {
	if len(u.Locale) < 2 {
		return ""
	}
	return strings.ToLower(u.Locale[:2])
}

// Field returns a user attribute by its column name. Secrets are not exposed.
func (u *User) Field(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.FormatInt(u.ID, 10), true
	case "first_name":
		return u.FirstName, true
	case "last_name":
		return u.LastName, true
	case "full_name":
		return u.FullName(), true
	case "name":
		return u.DisplayName(), true
	case "nickname":
		return u.Nickname, true
	case "facebook_id":
		return u.FacebookID, true
	case "gender":
		return u.Gender, true
	case "locale":
		return u.Locale, true
	}
	return "", false
}

// Profile is the subset of the platform profile used to create a User.
type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	Locale    string `json:"locale"`
}
