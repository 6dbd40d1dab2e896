package merkle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Dump format identifiers shared with OpenZeppelin's merkle-tree library.
const (
	dumpFormat = "standard-v1"
)

var leafEncoding = []string{"address", "uint256"}

var (
	// ErrEmptyTree is returned when building a tree with no allocations.
	ErrEmptyTree = errors.New("merkle: no allocations")

	// ErrDuplicateAccount is returned when an account appears twice.
	ErrDuplicateAccount = errors.New("merkle: duplicate account")

	// ErrNotInTree is returned when a proof is requested for an unknown account.
	ErrNotInTree = errors.New("merkle: account not in tree")
)

type entry struct {
	alloc     Allocation
	treeIndex int
}

// Tree is an array-backed Merkle tree. Leaves are sorted by hash and stored
// at the tail of the array; node i has children 2i+1 and 2i+2.
type Tree struct {
	nodes   []common.Hash
	entries []entry // in input order
	index   map[common.Address]int
}

// Build constructs a tree over allocations. Each account may appear once.
func Build(allocations []Allocation) (*Tree, error) {
	if len(allocations) == 0 {
		return nil, ErrEmptyTree
	}

	type hashed struct {
		pos  int
		hash common.Hash
	}
	seen := make(map[common.Address]struct{}, len(allocations))
	leaves := make([]hashed, len(allocations))
	for i, a := range allocations {
		if _, dup := seen[a.Account]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, a.Account.Hex())
		}
		seen[a.Account] = struct{}{}
		h, err := LeafHash(a.Account, a.Amount)
		if err != nil {
			return nil, err
		}
		leaves[i] = hashed{pos: i, hash: h}
	}
	sort.SliceStable(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i].hash[:], leaves[j].hash[:]) < 0
	})

	n := len(leaves)
	nodes := make([]common.Hash, 2*n-1)
	entries := make([]entry, n)
	for i, l := range leaves {
		idx := len(nodes) - 1 - i
		nodes[idx] = l.hash
		entries[l.pos] = entry{alloc: allocations[l.pos], treeIndex: idx}
	}
	for i := len(nodes) - 1 - n; i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}

	return newTree(nodes, entries), nil
}

func newTree(nodes []common.Hash, entries []entry) *Tree {
	t := &Tree{nodes: nodes, entries: entries, index: make(map[common.Address]int, len(entries))}
	for i, e := range entries {
		t.index[e.alloc.Account] = i
	}
	return t
}

// Root returns the tree root.
func (t *Tree) Root() common.Hash {
	return t.nodes[0]
}

// Len returns the number of allocations.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Allocations returns the allocations in build order.
func (t *Tree) Allocations() []Allocation {
	out := make([]Allocation, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.alloc
	}
	return out
}

// Total returns the sum of all allocations.
func (t *Tree) Total() sdkmath.Int {
	sum := sdkmath.ZeroInt()
	for _, e := range t.entries {
		sum = sum.Add(e.alloc.Amount)
	}
	return sum
}

// Proof returns the allocation and sibling path for account.
func (t *Tree) Proof(account common.Address) (Allocation, []common.Hash, error) {
	i, ok := t.index[account]
	if !ok {
		return Allocation{}, nil, fmt.Errorf("%w: %s", ErrNotInTree, account.Hex())
	}
	e := t.entries[i]
	return e.alloc, t.path(e.treeIndex), nil
}

func (t *Tree) path(i int) []common.Hash {
	var proof []common.Hash
	for i > 0 {
		sibling := i - 1
		if i%2 == 1 {
			sibling = i + 1
		}
		proof = append(proof, t.nodes[sibling])
		i = (i - 1) / 2
	}
	return proof
}

type dumpValue struct {
	Value     [2]string `json:"value"`
	TreeIndex int       `json:"treeIndex"`
}

type dump struct {
	Format       string      `json:"format"`
	Tree         []string    `json:"tree"`
	Values       []dumpValue `json:"values"`
	LeafEncoding []string    `json:"leafEncoding"`
}

// MarshalJSON encodes the tree in the standard-v1 dump format.
func (t *Tree) MarshalJSON() ([]byte, error) {
	d := dump{
		Format:       dumpFormat,
		Tree:         make([]string, len(t.nodes)),
		Values:       make([]dumpValue, len(t.entries)),
		LeafEncoding: leafEncoding,
	}
	for i, n := range t.nodes {
		d.Tree[i] = n.Hex()
	}
	for i, e := range t.entries {
		d.Values[i] = dumpValue{
			Value:     [2]string{e.alloc.Account.Hex(), e.alloc.Amount.String()},
			TreeIndex: e.treeIndex,
		}
	}
	return json.Marshal(d)
}

// LoadTree decodes a standard-v1 dump and checks every node against its
// children and every leaf against its value.
func LoadTree(data []byte) (*Tree, error) {
	var d dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if d.Format != dumpFormat {
		return nil, fmt.Errorf("unsupported tree format %q", d.Format)
	}
	if len(d.LeafEncoding) != len(leafEncoding) || d.LeafEncoding[0] != leafEncoding[0] || d.LeafEncoding[1] != leafEncoding[1] {
		return nil, fmt.Errorf("unsupported leaf encoding %v", d.LeafEncoding)
	}
	if len(d.Values) == 0 || len(d.Tree) != 2*len(d.Values)-1 {
		return nil, fmt.Errorf("tree has %d nodes for %d values", len(d.Tree), len(d.Values))
	}

	nodes := make([]common.Hash, len(d.Tree))
	for i, s := range d.Tree {
		b, err := ParseHash(s)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		nodes[i] = b
	}
	firstLeaf := len(nodes) - len(d.Values)
	for i := firstLeaf - 1; i >= 0; i-- {
		if nodes[i] != hashPair(nodes[2*i+1], nodes[2*i+2]) {
			return nil, fmt.Errorf("node %d does not match its children", i)
		}
	}

	entries := make([]entry, len(d.Values))
	seen := make(map[common.Address]struct{}, len(d.Values))
	for i, v := range d.Values {
		if !common.IsHexAddress(v.Value[0]) {
			return nil, fmt.Errorf("value %d: invalid address %q", i, v.Value[0])
		}
		account := common.HexToAddress(v.Value[0])
		if _, dup := seen[account]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, account.Hex())
		}
		seen[account] = struct{}{}
		amount, ok := sdkmath.NewIntFromString(v.Value[1])
		if !ok {
			return nil, fmt.Errorf("value %d: invalid amount %q", i, v.Value[1])
		}
		if v.TreeIndex < firstLeaf || v.TreeIndex >= len(nodes) {
			return nil, fmt.Errorf("value %d: tree index %d out of leaf range", i, v.TreeIndex)
		}
		leaf, err := LeafHash(account, amount)
		if err != nil {
			return nil, err
		}
		if nodes[v.TreeIndex] != leaf {
			return nil, fmt.Errorf("value %d: leaf hash mismatch", i)
		}
		entries[i] = entry{alloc: Allocation{Account: account, Amount: amount}, treeIndex: v.TreeIndex}
	}

	return newTree(nodes, entries), nil
}
