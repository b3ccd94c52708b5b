// Package interpolate substitutes recipient-scoped tokens into campaign
// subject and body strings. Both {{token}} and {token} syntaxes are
// recognized, case-insensitively, with French and English field aliases.
package interpolate

import (
	"regexp"
	"strings"
)

// RecipientData carries the prospect fields available to templates
type RecipientData struct {
	FullName string
	Email    string
	Company  string
}

// FirstName derives the prospect's first name from the full name.
func (d RecipientData) FirstName() string {
	fields := strings.Fields(d.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}|\{\s*([a-zA-Z_]+)\s*\}`)

// Interpolate replaces all recognized tokens in content with the recipient's
// values. Unrecognized tokens are left untouched.
func Interpolate(content string, data RecipientData) string {
	return tokenPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := tokenPattern.FindStringSubmatch(match)
		token := groups[1]
		if token == "" {
			token = groups[2]
		}

		switch strings.ToLower(token) {
		case "prenom", "firstname", "first_name":
			return data.FirstName()
		case "nom", "name", "fullname", "full_name":
			return data.FullName
		case "email":
			return data.Email
		case "entreprise", "company":
			return data.Company
		default:
			return match
		}
	})
}
