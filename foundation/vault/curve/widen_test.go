package curve_test

import (
	"errors"
	"math"
	"testing"

	"github.com/ardanlabs/vaults/foundation/vault/curve"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestMulDiv(t *testing.T) {
	type table struct {
		name    string
		x, y, d int64
		exp     int64
		err     error
	}

	tt := []table{
		{name: "exact", x: 150, y: 1_000_000, d: 100, exp: 1_500_000},
		{name: "floor", x: 4, y: 10, d: 3, exp: 13},
		{name: "zero", x: 0, y: 10, d: 3, exp: 0},
		{name: "wide", x: math.MaxInt64, y: math.MaxInt64, d: math.MaxInt64, exp: math.MaxInt64},
		{name: "wide-floor", x: math.MaxInt64, y: 3, d: 5, exp: 5534023222112865484},
		{name: "narrow-overflow", x: math.MaxInt64, y: 2, d: 1, err: curve.ErrOverflow},
		{name: "divide-by-zero", x: 1, y: 1, d: 0, err: curve.ErrDivisionByZero},
		{name: "negative", x: -1, y: 1, d: 1, err: curve.ErrNegative},
	}

	t.Log("Given the need to multiply and divide through a widened intermediate.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %d * %d / %d.", testID, tst.x, tst.y, tst.d)
			{
				f := func(t *testing.T) {
					got, err := curve.MulDiv(tst.x, tst.y, tst.d)
					if tst.err != nil {
						if !errors.Is(err, tst.err) {
							t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
							t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.err)
							t.Fatalf("\t%s\tTest %d:\tShould get back the right error.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould get back the right error.", success, testID)
						return
					}

					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to compute the value: %s", failed, testID, err)
					}

					if got != tst.exp {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.exp)
						t.Fatalf("\t%s\tTest %d:\tShould get back the floored quotient.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the floored quotient.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}
