// Package template implements the admin broadcast language:
//
//	@target body with $placeholders
//
// The target selects recipients; placeholders are substituted per recipient.
package template

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind names a target category.
type Kind string

const (
	KindAll        Kind = "all"
	KindMale       Kind = "male"
	KindFemale     Kind = "female"
	KindRegistered Kind = "registered"
	KindUser       Kind = "user"
	KindCourse     Kind = "course"
	KindLocale     Kind = "locale"
)

// Target is a predicate over the users table. Where uses $n placeholders
// bound to Args.
type Target struct {
	Kind  Kind
	Token string
	Where string
	Args  []any
}

// Command is a parsed broadcast: a target and the body still containing
// placeholders, with the casing the admin typed.
type Command struct {
	Target Target
	Body   string
}

var (
	targetRe = regexp.MustCompile(`(?i)^@([a-z\d:.-]+)`)
	userRe   = regexp.MustCompile(`^user:(\d+)$`)
	courseRe = regexp.MustCompile(`^course:(\d+)$`)
	localeRe = regexp.MustCompile(`^(?:lang|locale):([a-z]{2})$`)
)

// Parse reads the leading @target of text. It returns nil when the target is
// missing or not recognized; callers reject such commands rather than
// sending them to nobody.
func Parse(text string) *Command {
	loc := targetRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}
	token := strings.ToLower(text[loc[2]:loc[3]])
	target, ok := resolveTarget(token)
	if !ok {
		return nil
	}
	return &Command{Target: target, Body: stripSeparator(text[loc[1]:])}
}

func resolveTarget(token string) (Target, bool) {
	t := Target{Token: token}
	switch token {
	case "all":
		t.Kind, t.Where = KindAll, "TRUE"
		return t, true
	case "male", "female":
		t.Kind, t.Where, t.Args = Kind(token), "gender = $1", []any{token}
		return t, true
	case "registered":
		t.Kind, t.Where, t.Args = KindRegistered, "is_registered = $1", []any{true}
		return t, true
	}

	if m := userRe.FindStringSubmatch(token); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Target{}, false
		}
		t.Kind, t.Where, t.Args = KindUser, "id = $1", []any{id}
		return t, true
	}
	if m := courseRe.FindStringSubmatch(token); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Target{}, false
		}
		t.Kind, t.Where, t.Args = KindCourse, "usos_course = $1", []any{id}
		return t, true
	}
	if m := localeRe.FindStringSubmatch(token); m != nil {
		t.Kind, t.Where, t.Args = KindLocale, "locale LIKE $1", []any{m[1] + "%"}
		return t, true
	}
	return Target{}, false
}

// stripSeparator drops the single character separating the target from the body.
func stripSeparator(rest string) string {
	if rest == "" {
		return ""
	}
	switch rest[0] {
	case ' ', '\t', '\n', '\r':
		return rest[1:]
	}
	return rest
}
