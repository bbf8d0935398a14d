package validate_test

import (
	"testing"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/validate"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func TestCheck(t *testing.T) {
	t.Log("Given the need to validate a batch.")
	{
		t.Logf("\tTest 0:\tWhen every transaction is complete.")
		{
			b := graph.Batch{Transactions: []graph.Tx{{Hash: "h1", From: "A"}}}
			if err := validate.Check(b); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the batch: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the batch.", success)
		}

		t.Logf("\tTest 1:\tWhen transactions lack a hash or a sender.")
		{
			b := graph.Batch{Transactions: []graph.Tx{
				{Hash: "h1", From: "A"},
				{From: "B"},
				{Hash: "h3"},
			}}

			err := validate.Check(b)
			if !validate.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest 1:\tShould return field errors, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould return field errors.", success)

			fields := validate.GetFieldErrors(err).Fields()
			if len(fields) != 2 || fields["transactions[1].hash"] == "" || fields["transactions[2].from"] == "" {
				t.Fatalf("\t%s\tTest 1:\tShould name every offending field, got %v.", failed, fields)
			}
			t.Logf("\t%s\tTest 1:\tShould name every offending field.", success)
		}
	}
}
