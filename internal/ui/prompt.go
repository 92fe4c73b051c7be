package ui

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

// Confirm asks the operator whether to apply one migration script. The
// default answer is no, so an accidental Enter never applies anything.
func Confirm(ordinal int, name string) (bool, error) {
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Apply migration %04d (%s)?", ordinal, name),
		Default: false,
	}
	var apply bool
	if err := survey.AskOne(prompt, &apply); err != nil {
		return false, err
	}
	return apply, nil
}
