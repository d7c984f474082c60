package template

import "strings"

var helpTopics = map[string]string{
	"overview": `Broadcast: @target message
Targets: @all, @male, @female, @registered, @user:<id>, @course:<id>, @lang:<cc>
Placeholders: $user, $date, $target. Send "help <placeholder>" for details.`,
	"user": `$user - nickname, or first name when no nickname is set
$user.first_name, $user.last_name, $user.full_name, $user.nickname
$user.id, $user.gender, $user.locale, $user.facebook_id`,
	"date": `$date - medium date, e.g. "Jan 2, 2006"
$date.time, $date.day, $date.weekday, $date.weekday_short
$date.month, $date.month_short, $date.month_num, $date.year
Dates use the recipient's language (English when unknown).`,
	"target": `$target - name of the selected group in the recipient's language
$target.capital - same, starting with a capital letter`,
}

// IsHelp reports whether an admin message asks for help.
func IsHelp(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "help")
}

// Help returns the help text for the topic following the "help" keyword.
// Unknown or missing topics return the overview.
func Help(text string) string {
	topic := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(text)), "help")
	topic = strings.TrimSpace(topic)
	topic = strings.TrimPrefix(topic, "$")
	if h, ok := helpTopics[topic]; ok {
		return h
	}
	return helpTopics["overview"]
}
