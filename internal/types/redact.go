package types

import "strings"

// RedactEmail masks an address for logging: "john@gmail.com" becomes
// "j***@gmail.com". A value without "@" is masked entirely.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}
