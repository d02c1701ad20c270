package types

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genDate produces arbitrary dates in a range wide enough to cover leap years
// and month boundaries.
func genDate() gopter.Gen {
	return gen.IntRange(0, 365*30).Map(func(offset int) Date {
		return NewDate(2000, time.January, 1).AddDays(offset)
	})
}

func TestDateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parse inverts String", prop.ForAll(
		func(d Date) bool {
			parsed, err := ParseDate(d.String())
			return err == nil && parsed.Equal(d)
		},
		genDate(),
	))

	properties.Property("AddDays is additive", prop.ForAll(
		func(d Date, a, b int) bool {
			return d.AddDays(a).AddDays(b).Equal(d.AddDays(a + b))
		},
		genDate(),
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
	))

	properties.Property("DaysUntil matches AddDays", prop.ForAll(
		func(d Date, n int) bool {
			return d.DaysUntil(d.AddDays(n)) == n
		},
		genDate(),
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t)
}
