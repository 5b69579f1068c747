// package prefixindex is a build-once longest-prefix-match index over table entries
package prefixindex

import (
	"slices"

	"github.com/gaissmai/bart"

	"paepcke.de/ipmatch/ipaddr"
)

// Item is an entry stored under its prefix, Seq is the global insertion order.
type Item[E any] struct {
	Prefix ipaddr.Prefix
	Seq    int
	Entry  E
}

// Index maps prefixes to the entries sharing them.
//
// Entries with an identical prefix are kept in one bucket in insertion order.
// After the load phase an Index is only read, it is safe for concurrent
// lookups without locking.
type Index[E any] struct {
	tbl  bart.Table[[]Item[E]]
	size int
	len4 int
	len6 int
}

// New ...
func New[E any]() *Index[E] {
	return &Index[E]{}
}

// Insert appends e to the bucket of p. Invalid prefixes are ignored.
func (x *Index[E]) Insert(p ipaddr.Prefix, e E) {
	if !p.IsValid() {
		return
	}
	item := Item[E]{Prefix: p, Seq: x.size, Entry: e}
	x.tbl.Modify(p.Netip(), func(bucket []Item[E], _ bool) ([]Item[E], bool) {
		return append(bucket, item), false
	})
	x.size++
	switch p.Family() {
	case ipaddr.IPv4:
		x.len4++
	case ipaddr.IPv6:
		x.len6++
	}
}

// Len is the number of inserted entries.
func (x *Index[E]) Len() int { return x.size }

// LenFamily is the number of inserted entries of one family.
func (x *Index[E]) LenFamily(f ipaddr.Family) int {
	switch f {
	case ipaddr.IPv4:
		return x.len4
	case ipaddr.IPv6:
		return x.len6
	}
	return 0
}

// Exact returns the bucket stored for exactly p.
func (x *Index[E]) Exact(p ipaddr.Prefix) []Item[E] {
	bucket, _ := x.tbl.Get(p.Netip())
	return bucket
}

// Best returns the bucket of the longest stored prefix covering q.
// A host prefix q is a plain address lookup.
func (x *Index[E]) Best(q ipaddr.Prefix) (ipaddr.Prefix, []Item[E], bool) {
	if !q.IsValid() {
		return ipaddr.Prefix{}, nil, false
	}
	// supernets are yielded longest first, the first one is the lpm
	for _, bucket := range x.tbl.Supernets(q.Netip()) {
		if len(bucket) == 0 {
			continue
		}
		return bucket[0].Prefix, bucket, true
	}
	return ipaddr.Prefix{}, nil, false
}

// AllCovering returns every item whose prefix covers q, in insertion order.
func (x *Index[E]) AllCovering(q ipaddr.Prefix) []Item[E] {
	if !q.IsValid() {
		return nil
	}
	var out []Item[E]
	for _, bucket := range x.tbl.Supernets(q.Netip()) {
		out = append(out, bucket...)
	}
	slices.SortFunc(out, func(a, b Item[E]) int { return a.Seq - b.Seq })
	return out
}

// Walk calls fn for every item, in insertion order.
func (x *Index[E]) Walk(fn func(Item[E]) bool) {
	var all []Item[E]
	for _, bucket := range x.tbl.All() {
		all = append(all, bucket...)
	}
	slices.SortFunc(all, func(a, b Item[E]) int { return a.Seq - b.Seq })
	for _, it := range all {
		if !fn(it) {
			return
		}
	}
}
