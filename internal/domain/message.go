package domain

import "fmt"

// NotificationTitle is the title used for desktop notifications.
func NotificationTitle(title string) string {
	return "Countdown: " + title
}

// NotificationBody is the compact desktop notification body, e.g. "1h 30m left!".
func NotificationBody(leadMinutes int) string {
	return fmt.Sprintf("%dh %dm left!", leadMinutes/60, leadMinutes%60)
}

// UpcomingMessage is the in-app banner text for an alert firing leadMinutes
// before the event, e.g. "Your event 'Birthday' is 1 hour and 30 minutes away!".
func UpcomingMessage(title string, leadMinutes int) string {
	return fmt.Sprintf("Your event '%s' is %s away!", title, leadPhrase(leadMinutes))
}

// MissedMessage is the recovery summary line for an alert that should have
// fired while the application was not running.
func MissedMessage(title string, leadMinutes int) string {
	return fmt.Sprintf("Your event '%s' was %s ago!", title, leadPhrase(leadMinutes))
}

func leadPhrase(leadMinutes int) string {
	h, m := leadMinutes/60, leadMinutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%s and %s", plural(h, "hour"), plural(m, "minute"))
	case h > 0:
		return plural(h, "hour")
	case m > 0:
		return plural(m, "minute")
	default:
		return "moments"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
