package merkle

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/types"
)

func testTags(n int) []string {
	tags := make([]string, n)
	for i := range tags {
		tags[i] = hash.SumString(fmt.Sprintf("ballot-%d", i)).Hex()
	}
	return tags
}

func TestThreeLeafScenario(t *testing.T) {
	c := qt.New(t)
	la, lb, lc := hash.LeafHash("a1"), hash.LeafHash("b2"), hash.LeafHash("c3")
	ab := hash.NodeHash(la, lb)
	want := hash.NodeHash(ab, lc)

	tree := Build([]string{"a1", "b2", "c3"})
	c.Assert(tree.Root(), qt.Equals, want)
	c.Assert(tree.Size(), qt.Equals, 3)
	c.Assert(tree.Depth(), qt.Equals, 2)

	// the odd node is carried up, not duplicated
	c.Assert(tree.Root(), qt.Not(qt.Equals), hash.NodeHash(ab, hash.NodeHash(lc, lc)))

	p, err := Prove(tree, "c3")
	c.Assert(err, qt.IsNil)
	c.Assert(p.Steps, qt.DeepEquals, []ProofStep{{Sibling: ab, Side: SideLeft}})
	c.Assert(Verify("c3", p, want), qt.IsTrue)

	p, err = Prove(tree, "a1")
	c.Assert(err, qt.IsNil)
	c.Assert(p.Steps, qt.DeepEquals, []ProofStep{
		{Sibling: lb, Side: SideRight},
		{Sibling: lc, Side: SideRight},
	})
	c.Assert(Verify("a1", p, want), qt.IsTrue)

	p, err = Prove(tree, "b2")
	c.Assert(err, qt.IsNil)
	c.Assert(p.Steps[0], qt.Equals, ProofStep{Sibling: la, Side: SideLeft})
	c.Assert(Verify("b2", p, want), qt.IsTrue)
	c.Assert(Verify("a1", p, want), qt.IsFalse)
}

func TestEmptyAndSingle(t *testing.T) {
	c := qt.New(t)
	empty := Build(nil)
	c.Assert(empty.Root(), qt.Equals, hash.EmptyRoot)
	c.Assert(empty.Size(), qt.Equals, 0)
	c.Assert(empty.Depth(), qt.Equals, 0)
	c.Assert(empty.Leaves(), qt.IsNil)
	_, err := Prove(empty, "x")
	c.Assert(err, qt.ErrorIs, types.ErrNotFound)

	single := Build([]string{"only"})
	c.Assert(single.Root(), qt.Equals, hash.LeafHash("only"))
	p, err := Prove(single, "only")
	c.Assert(err, qt.IsNil)
	c.Assert(p.Steps, qt.HasLen, 0)
	c.Assert(Verify("only", p, single.Root()), qt.IsTrue)
}

func TestDeterminism(t *testing.T) {
	c := qt.New(t)
	tags := testTags(17)
	c.Assert(Build(tags).Root(), qt.Equals, Build(tags).Root())
	c.Assert(Build(tags).Leaves(), qt.DeepEquals, Build(tags).Leaves())
}

func TestInclusionSoundness(t *testing.T) {
	c := qt.New(t)
	for n := 1; n <= 33; n++ {
		tags := testTags(n)
		tree := Build(tags)
		for i, tag := range tags {
			p, err := Prove(tree, tag)
			c.Assert(err, qt.IsNil)
			c.Assert(p.LeafIndex, qt.Equals, i)
			c.Assert(len(p.Steps) <= tree.Depth(), qt.IsTrue)
			c.Assert(Verify(tag, p, tree.Root()), qt.IsTrue, qt.Commentf("n=%d leaf=%d", n, i))
		}
		_, err := Prove(tree, "absent")
		c.Assert(err, qt.ErrorIs, types.ErrNotFound)
	}
}

func flipHex(s string, pos int) string {
	b := []byte(s)
	if b[pos] == '0' {
		b[pos] = '1'
	} else {
		b[pos] = '0'
	}
	return string(b)
}

func TestTamperDetection(t *testing.T) {
	c := qt.New(t)
	tags := testTags(9)
	tree := Build(tags)
	root := tree.Root()

	for i, tag := range tags {
		p, err := Prove(tree, tag)
		c.Assert(err, qt.IsNil)
		for pos := 0; pos < len(tag); pos += 7 {
			c.Assert(Verify(flipHex(tag, pos), p, root), qt.IsFalse)
		}
		for s := range p.Steps {
			hp := p.Hex()
			hp.Steps[s].Sibling = flipHex(hp.Steps[s].Sibling, i%64)
			ok, err := VerifyHex(tag, hp, root.Hex())
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsFalse)
		}
		// swapping the side breaks the proof as well
		if len(p.Steps) > 0 {
			bad := &Proof{Steps: append([]ProofStep(nil), p.Steps...)}
			if bad.Steps[0].Side == SideLeft {
				bad.Steps[0].Side = SideRight
			} else {
				bad.Steps[0].Side = SideLeft
			}
			c.Assert(Verify(tag, bad, root), qt.IsFalse)
		}
	}
}

func TestOrderingIndependenceAfterSort(t *testing.T) {
	c := qt.New(t)
	tags := testTags(21)
	want := BuildSorted(tags).Root()
	for range 10 {
		shuffled := append([]string(nil), tags...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		c.Assert(BuildSorted(shuffled).Root(), qt.Equals, want)
	}
	// BuildSorted does not reorder the caller's slice
	before := append([]string(nil), tags...)
	BuildSorted(tags)
	c.Assert(tags, qt.DeepEquals, before)
}

func TestVerifyFailsClosed(t *testing.T) {
	c := qt.New(t)
	tree := Build(testTags(4))
	tag := testTags(4)[1]
	p, err := Prove(tree, tag)
	c.Assert(err, qt.IsNil)

	c.Assert(Verify(tag, nil, tree.Root()), qt.IsFalse)
	c.Assert(Verify(tag, &Proof{Steps: []ProofStep{{Side: 0}}}, tree.Root()), qt.IsFalse)

	ok, err := VerifyHex(tag, p.Hex(), tree.Root().Hex())
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	for name, mutate := range map[string]func(hp *HexProof) (*HexProof, string){
		"bad root": func(hp *HexProof) (*HexProof, string) { return hp, "zz" },
		"short root": func(hp *HexProof) (*HexProof, string) {
			return hp, tree.Root().Hex()[:40]
		},
		"bad sibling": func(hp *HexProof) (*HexProof, string) {
			hp.Steps[0].Sibling = "not-hex"
			return hp, tree.Root().Hex()
		},
		"long sibling": func(hp *HexProof) (*HexProof, string) {
			hp.Steps[0].Sibling += "00"
			return hp, tree.Root().Hex()
		},
		"unknown side": func(hp *HexProof) (*HexProof, string) {
			hp.Steps[0].Side = "up"
			return hp, tree.Root().Hex()
		},
		"nil proof": func(*HexProof) (*HexProof, string) { return nil, tree.Root().Hex() },
	} {
		hp, root := mutate(p.Hex())
		ok, err := VerifyHex(tag, hp, root)
		c.Assert(err, qt.ErrorIs, types.ErrMalformedProof, qt.Commentf("%s", name))
		c.Assert(ok, qt.IsFalse)
	}
}

func TestProofJSON(t *testing.T) {
	c := qt.New(t)
	tree := Build([]string{"a1", "b2", "c3"})
	p, err := Prove(tree, "c3")
	c.Assert(err, qt.IsNil)

	data, err := json.Marshal(p)
	c.Assert(err, qt.IsNil)
	want := fmt.Sprintf(`{"leafIndex":2,"steps":[{"sibling":"%s","side":"left"}]}`,
		hash.NodeHash(hash.LeafHash("a1"), hash.LeafHash("b2")).Hex())
	c.Assert(string(data), qt.Equals, want)

	var hp HexProof
	c.Assert(json.Unmarshal(data, &hp), qt.IsNil)
	ok, err := VerifyHex("c3", &hp, tree.Root().Hex())
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	var back Proof
	c.Assert(json.Unmarshal(data, &back), qt.IsNil)
	c.Assert(&back, qt.DeepEquals, p)

	c.Assert(json.Unmarshal([]byte(`{"steps":[{"sibling":"`+tree.Root().Hex()+`","side":"both"}]}`), &back),
		qt.ErrorIs, types.ErrMalformedProof)
}
