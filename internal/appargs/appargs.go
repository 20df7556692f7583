// Package appargs provides argument validation routines for
// github.com/urfave/cli/v2, adapted from the teacher's internal/appargs.
package appargs

import (
	"errors"

	"github.com/urfave/cli/v2"
)

// Validator consumes a prefix of args, returning how many it used or -1 on
// a validation failure.
type Validator func(args []string) int

// Required validates a single mandatory positional argument.
func Required(args []string) int {
	if len(args) == 0 {
		return -1
	}
	return 1
}

// RequiredNonEmpty validates a single mandatory, non-empty positional
// argument.
func RequiredNonEmpty(args []string) int {
	if len(args) == 0 || args[0] == "" {
		return -1
	}
	return 1
}

// Optional validates zero or one positional argument.
func Optional(args []string) int {
	if len(args) == 0 {
		return 0
	}
	return 1
}

// Rest consumes every remaining argument without validation — used for the
// command's own argv (spec.md §6's `(argc, argv, ns_mask)` handler
// signature).
func Rest(args []string) int {
	return len(args)
}

// ErrInvalidUsage is returned when a command's arguments fail validation.
var ErrInvalidUsage = errors.New("appargs: invalid command usage")

// Validate runs vs in order against a cli.Context's arguments and can be
// used directly as a cli.Command's Before hook.
func Validate(vs ...Validator) cli.BeforeFunc {
	return func(c *cli.Context) error {
		remaining := c.Args().Slice()
		for _, v := range vs {
			consumed := v(remaining)
			if consumed < 0 {
				return ErrInvalidUsage
			}
			remaining = remaining[consumed:]
		}
		if len(remaining) > 0 {
			return ErrInvalidUsage
		}
		return nil
	}
}
