package template

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/goodsign/monday"
	"github.com/jmerrifield20/campusbot/internal/users"
)

var placeholderRe = regexp.MustCompile(`(?i)\$([a-z]+)(?:\.([a-z_]+))?`)

var dateLayouts = map[string]string{
	"":              "Jan 2, 2006",
	"time":          "15:04",
	"day":           "2",
	"weekday":       "Monday",
	"weekday_short": "Mon",
	"month":         "January",
	"month_short":   "Jan",
	"month_num":     "1",
	"year":          "2006",
}

var dateLocales = map[string]monday.Locale{
	"en": monday.LocaleEnUS,
	"pl": monday.LocalePlPL,
}

var targetNames = map[string]map[Kind]string{
	"en": {
		KindAll:        "all",
		KindMale:       "men",
		KindFemale:     "women",
		KindRegistered: "registered",
		KindLocale:     "English language",
	},
	"pl": {
		KindAll:        "wszyscy",
		KindMale:       "panowie",
		KindFemale:     "panie",
		KindRegistered: "zarejestrowani",
		KindLocale:     "język polski",
	},
}

// Render substitutes every recognized placeholder in the body for recipient
// u. Unrecognized placeholders and all other text are kept as written.
func (c *Command) Render(u *users.User, now time.Time) string {
	lang := u.Language()
	return placeholderRe.ReplaceAllStringFunc(c.Body, func(match string) string {
		sub := placeholderRe.FindStringSubmatch(match)
		name, field := strings.ToLower(sub[1]), strings.ToLower(sub[2])

		var (
			out string
			ok  bool
		)
		switch name {
		case "user":
			out, ok = userValue(u, field)
		case "date":
			out, ok = FormatDate(now, field, lang)
		case "target":
			out, ok = c.targetValue(field, lang)
		}
		if !ok {
			return match
		}
		return out
	})
}

func userValue(u *users.User, field string) (string, bool) {
	if field == "" {
		field = "name"
	}
	return u.Field(field)
}

// FormatDate renders t in the named $date variant, localized to lang with
// English as the fallback.
func FormatDate(t time.Time, variant, lang string) (string, bool) {
	layout, ok := dateLayouts[variant]
	if !ok {
		return "", false
	}
	locale, ok := dateLocales[lang]
	if !ok {
		locale = monday.LocaleEnUS
	}
	return monday.Format(t, layout, locale), true
}

func (c *Command) targetValue(field, lang string) (string, bool) {
	name, ok := TargetName(c.Target.Kind, lang)
	if !ok {
		return "", false
	}
	name = strings.ToLower(name)
	switch field {
	case "":
		return name, true
	case "capital":
		return capitalize(name), true
	}
	return "", false
}

// TargetName returns the human-readable name of a target kind in lang,
// falling back to English for languages without a translation.
func TargetName(kind Kind, lang string) (string, bool) {
	names, ok := targetNames[lang]
	if !ok {
		names = targetNames["en"]
	}
	name, ok := names[kind]
	return name, ok
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
