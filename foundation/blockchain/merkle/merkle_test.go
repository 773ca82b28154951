package merkle_test

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/platopia-network/platopia/foundation/blockchain/merkle"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// payload is simple data for the tests.
type payload struct {
	data string
}

// Hash hashes the payload with double sha256.
func (p payload) Hash() ([]byte, error) {
	first := sha256.Sum256([]byte(p.data))
	second := sha256.Sum256(first[:])
	return second[:], nil
}

func Test_SingleLeaf(t *testing.T) {
	t.Log("Given the need to validate a single leaf tree.")
	{
		value := payload{data: "coinbase"}
		tree, err := merkle.NewTree([]payload{value})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to build the tree.", success)

		leaf, _ := value.Hash()
		if !bytes.Equal(tree.Root(), leaf) {
			t.Fatalf("\t%s\tShould use the leaf hash as the root.", failed)
		}
		t.Logf("\t%s\tShould use the leaf hash as the root.", success)
	}
}

func Test_OddLeaves(t *testing.T) {
	t.Log("Given the need to validate odd leaf counts pair the tail with itself.")
	{
		values := []payload{{"a"}, {"b"}, {"c"}}
		tree, err := merkle.NewTree(values)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to build the tree.", success)

		ha, _ := values[0].Hash()
		hb, _ := values[1].Hash()
		hc, _ := values[2].Hash()
		left := merkle.Sha256d(ha, hb)
		right := merkle.Sha256d(hc, hc)
		root := merkle.Sha256d(left, right)

		if !bytes.Equal(tree.Root(), root) {
			t.Fatalf("\t%s\tShould duplicate the last leaf: got %x exp %x", failed, tree.Root(), root)
		}
		t.Logf("\t%s\tShould duplicate the last leaf.", success)
	}
}

func Test_Contains(t *testing.T) {
	t.Log("Given the need to validate leaf membership checks.")
	{
		values := []payload{{"a"}, {"b"}, {"c"}, {"d"}}
		tree, err := merkle.NewTree(values)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}

		ok, err := tree.Contains(payload{"c"})
		if err != nil || !ok {
			t.Fatalf("\t%s\tShould find an included value.", failed)
		}
		t.Logf("\t%s\tShould find an included value.", success)

		ok, err = tree.Contains(payload{"zz"})
		if err != nil || ok {
			t.Fatalf("\t%s\tShould not find an excluded value.", failed)
		}
		t.Logf("\t%s\tShould not find an excluded value.", success)
	}
}
