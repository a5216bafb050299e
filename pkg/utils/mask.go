package utils

import "net/url"

// MaskDSN replaces the password in a URL-style connection string so the
// string is safe to log. Inputs that do not parse, or carry no credentials,
// come back unchanged.
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
