package set

import (
	"math/rand/v2"

	mapset "github.com/deckarep/golang-set/v2"
)

// Set is an unordered collection of unique binary-safe members.
type Set struct {
	mapset.Set[string]
}

func New() *Set {
	return &Set{mapset.NewThreadUnsafeSetWithSize[string](64)}
}

func wrap(s mapset.Set[string]) *Set {
	return &Set{s}
}

func (s Set) Remove(member string) bool {
	if !s.ContainsOne(member) {
		return false
	}
	s.Set.Remove(member)
	return true
}

func (s Set) Exist(member string) bool {
	return s.ContainsOne(member)
}

func (s Set) Len() int {
	return s.Cardinality()
}

func (s Set) Scan(fn func(string)) {
	s.Set.Each(func(s string) bool {
		fn(s)
		return false
	})
}

// RandomMembers draws members uniformly at random. A positive count returns
// up to count distinct members, a negative count returns exactly -count
// members which may repeat.
func (s Set) RandomMembers(count int) []string {
	members := s.ToSlice()
	if len(members) == 0 || count == 0 {
		return []string{}
	}
	if count < 0 {
		res := make([]string, 0, -count)
		s.randomRepeat(members, -count, func(member string) {
			res = append(res, member)
		})
		return res
	}
	if count >= len(members) {
		return members
	}
	// partial Fisher-Yates
	for i := range count {
		j := i + rand.IntN(len(members)-i)
		members[i], members[j] = members[j], members[i]
	}
	return members[:count]
}

// RandomRepeat calls fn n times with a member drawn at random, members may
// repeat. It does nothing on an empty set.
func (s Set) RandomRepeat(n int, fn func(member string)) {
	members := s.ToSlice()
	if len(members) == 0 {
		return
	}
	s.randomRepeat(members, n, fn)
}

func (Set) randomRepeat(members []string, n int, fn func(string)) {
	for range n {
		fn(members[rand.IntN(len(members))])
	}
}

func (s Set) Clone() *Set {
	return wrap(s.Set.Clone())
}

// Union returns a new set with the members of s and all others.
func (s Set) Union(others ...*Set) *Set {
	res := s.Set.Clone()
	for _, o := range others {
		res = res.Union(o.Set)
	}
	return wrap(res)
}

// Inter returns a new set with the members present in s and every other.
func (s Set) Inter(others ...*Set) *Set {
	res := s.Set.Clone()
	for _, o := range others {
		if res.Cardinality() == 0 {
			break
		}
		res = res.Intersect(o.Set)
	}
	return wrap(res)
}

// Diff returns a new set with the members of s not present in any other.
func (s Set) Diff(others ...*Set) *Set {
	res := s.Set.Clone()
	for _, o := range others {
		res = res.Difference(o.Set)
	}
	return wrap(res)
}
