// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/staranto/assetctl/internal/attrs"
	"github.com/staranto/assetctl/internal/output"
)

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'. urfave/cli happily takes the next flag as the value.
func JammedFlagValidator(value any) error {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	return ChoiceValidator(output.Formats...)(value)
}

// ChoiceValidator accepts one of choices.
func ChoiceValidator(choices ...string) FlagValidatorType {
	return func(value any) error {
		s, _ := value.(string)
		if !slices.Contains(choices, s) {
			return fmt.Errorf("must be one of %v", choices)
		}
		return nil
	}
}

func AttrsValidator(value any) error {
	var al attrs.AttrList
	return al.Set(value.(string))
}

func NonNegativeValidator(value any) error {
	if n, ok := value.(int); ok && n < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func PositiveValidator(value any) error {
	if n, ok := value.(int); ok && n <= 0 {
		return errors.New("must be positive")
	}
	return nil
}
