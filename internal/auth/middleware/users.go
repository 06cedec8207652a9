package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	Role     string
	PassHash string // bcrypt
}

// Users is the local login table, keyed by username.
type Users map[string]User

// ParseUsers reads "name:role:hash" entries separated by ";".
func ParseUsers(s string) (Users, error) {
	out := Users{}
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("bad user entry %q", entry)
		}
		out[parts[0]] = User{Role: parts[1], PassHash: parts[2]}
	}
	return out, nil
}

// Check returns the user's role when the password matches.
func (u Users) Check(username, password string) (string, bool) {
	usr, ok := u[username]
	if !ok || password == "" {
		// keep timing similar for unknown users
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z6nZ5lR3CjB7ZqQzE8k0G6ca"), []byte(password))
		return "", false
	}
	if bcrypt.CompareHashAndPassword([]byte(usr.PassHash), []byte(password)) != nil {
		return "", false
	}
	return usr.Role, true
}
