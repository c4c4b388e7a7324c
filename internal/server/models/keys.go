package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// Uniqueness keys are the case-folded forms of the unique attributes. Two
// users collide on a rule exactly when their keys for that rule are equal.

func foldKey(s string) string {
	// cases.Caser is stateful, so one per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

func (u User) EmailKey() string {
	return foldKey(u.EmailAddress)
}

func (u User) UsernameKey() string {
	return foldKey(u.Username)
}

// FullNameKey joins the folded first name and surname with a unit separator
// so ("ab", "c") and ("a", "bc") stay distinct.
func (u User) FullNameKey() string {
	return foldKey(u.FirstName) + "\x1f" + foldKey(u.Surname)
}
