// Package validation holds the field validators shared by every portal form
// and request payload. A validator returns "" for a valid value and a
// human-readable message otherwise.
package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MsgEmail               = "Please enter a valid email address"
	MsgPasswordLength      = "Password must be at least 6 characters long"
	MsgPasswordComplexity  = "Password must contain at least one lowercase letter, one uppercase letter, and one number"
	MsgNameTooShort        = "Name must be at least 2 characters long"
	MsgNameTooLong         = "Name must be less than 50 characters"
	MsgNameCharacters      = "Name can only contain letters, spaces, dots, hyphens, and apostrophes"
	MsgDescriptionTooShort = "Description must be at least 10 characters long"
	MsgDescriptionTooLong  = "Description must be less than 500 characters"
	MsgPhone               = "Please enter a valid phone number"
	MsgNumber              = "Please enter a valid number"
	MsgWholeNumber         = "Please enter a whole number"
	MsgPasswordMismatch    = "Passwords do not match"
)

const (
	passwordMinLength    = 6
	nameMinLength        = 2
	nameMaxLength        = 50
	descriptionMinLength = 10
	descriptionMaxLength = 500
)

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRegex  = regexp.MustCompile(`^[a-zA-Z\s.'-]+$`)
	phoneRegex = regexp.MustCompile(`^[+]?[1-9][\d]{0,15}$`)
)

// Email checks the value looks like an address: something@something.tld.
func Email(value string) string {
	if !emailRegex.MatchString(value) {
		return MsgEmail
	}
	return ""
}

// Password requires at least six characters with a lowercase letter, an
// uppercase letter and a digit.
func Password(value string) string {
	if utf8.RuneCountInString(value) < passwordMinLength {
		return MsgPasswordLength
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range value {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit {
		return MsgPasswordComplexity
	}
	return ""
}

// Name and Description count characters, not bytes.
func Name(value string) string {
	trimmed := strings.TrimSpace(value)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n < nameMinLength:
		return MsgNameTooShort
	case n > nameMaxLength:
		return MsgNameTooLong
	case !nameRegex.MatchString(trimmed):
		return MsgNameCharacters
	}
	return ""
}

func Description(value string) string {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n < descriptionMinLength:
		return MsgDescriptionTooShort
	case n > descriptionMaxLength:
		return MsgDescriptionTooLong
	}
	return ""
}

// Phone accepts an optional leading "+" followed by up to 16 digits, the
// first of which is non-zero. Whitespace anywhere in the value is ignored.
func Phone(value string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
	if !phoneRegex.MatchString(stripped) {
		return MsgPhone
	}
	return ""
}

// Number parses value as a float and checks it lies within [min, max].
func Number(value string, min, max float64) string {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) {
		return MsgNumber
	}
	if n < min {
		return "Value must be at least " + formatBound(min)
	}
	if n > max {
		return "Value must be no more than " + formatBound(max)
	}
	return ""
}

// WholeNumber rejects numbers with a fractional part.
func WholeNumber(value string) string {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return MsgNumber
	}
	if n != math.Trunc(n) {
		return MsgWholeNumber
	}
	return ""
}

// DefaultNumber applies the default bounds 0..+Inf.
func DefaultNumber(value string) string {
	return Number(value, 0, math.Inf(1))
}

func ConfirmPassword(password, confirm string) string {
	if password != confirm {
		return MsgPasswordMismatch
	}
	return ""
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
