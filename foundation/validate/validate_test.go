package validate_test

import (
	"testing"

	"github.com/ardanlabs/vaults/foundation/validate"
	"github.com/ardanlabs/vaults/foundation/vault/asset"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type request struct {
	Account asset.Name       `json:"account" validate:"required,account"`
	Code    asset.SymbolCode `json:"code" validate:"required,symcode"`
	Memo    string           `json:"memo" validate:"max=8"`
}

func TestCheck(t *testing.T) {
	t.Log("Given the need to validate models.")
	{
		t.Logf("\tTest 0:\tWhen the model is valid.")
		{
			if err := validate.Check(request{Account: "vaults.sx", Code: "SXEOS"}); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the model: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the model.", success)
		}

		t.Logf("\tTest 1:\tWhen every field is invalid.")
		{
			err := validate.Check(request{Account: "Vaults_SX", Code: "sxeos", Memo: "far too long"})
			if !validate.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest 1:\tShould return field errors: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould return field errors.", success)

			fields := validate.GetFieldErrors(err).Fields()
			exp := map[string]string{
				"account": "account must be a valid account name",
				"code":    "code must be a valid symbol code",
				"memo":    "memo must be a maximum of 8 characters in length",
			}
			for field, msg := range exp {
				if fields[field] != msg {
					t.Logf("\t%s\tTest 1:\tgot: %q", failed, fields[field])
					t.Logf("\t%s\tTest 1:\texp: %q", failed, msg)
					t.Fatalf("\t%s\tTest 1:\tShould translate the %s error.", failed, field)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould translate every error.", success)
		}
	}
}
