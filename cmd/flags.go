package cmd

import (
	"github.com/spf13/pflag"

	"github.com/satchel-app/satchel/internal/dateparse"
)

// dateValue resolves date shorthand while flags are parsed, so command
// bodies only ever see ISO dates.
type dateValue struct {
	date *string
}

func newDateValue(p *string) pflag.Value { return &dateValue{date: p} }

func (v *dateValue) String() string { return *v.date }

func (v *dateValue) Set(raw string) error {
	parsed, err := dateparse.Parse(raw)
	if err != nil {
		return err
	}
	*v.date = parsed
	return nil
}

func (v *dateValue) Type() string { return "date" }
