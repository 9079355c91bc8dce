// elPart: a high-performance tool for partitioning reads into clonal families.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

// Package cluster partitions reads into clusters by single-linkage
// union of all pairs whose score passes a threshold.
package cluster

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// A Comparator decides in which direction a score must deviate from a
// threshold to keep a pair.
type Comparator int

const (
	// AtLeast keeps pairs with score >= threshold. Use it for
	// compatibility scores, where higher is closer.
	AtLeast Comparator = iota

	// AtMost keeps pairs with score <= threshold. Use it for
	// distances, where smaller is closer.
	AtMost
)

func (c Comparator) String() string {
	switch c {
	case AtLeast:
		return ">="
	case AtMost:
		return "<="
	default:
		return fmt.Sprintf("comparator(%d)", int(c))
	}
}

// A Clusterer is a threshold together with a comparison direction.
type Clusterer struct {
	Threshold float64
	Keep      Comparator
}

// Keeps reports whether a pair with the given score is kept.
func (c Clusterer) Keeps(score float64) bool {
	switch c.Keep {
	case AtLeast:
		return score >= c.Threshold
	case AtMost:
		return score <= c.Threshold
	default:
		panic(fmt.Sprintf("invalid comparator %v", c.Keep))
	}
}

// A Scored pair of reads.
type Scored struct {
	A, B  string
	Score float64
}

// disjointSets is a union-find structure over dense indices.
type disjointSets struct {
	parent []int
	rank   []int8
}

func (s *disjointSets) add() int {
	index := len(s.parent)
	s.parent = append(s.parent, index)
	s.rank = append(s.rank, 0)
	return index
}

func (s *disjointSets) find(x int) int {
	for s.parent[x] != x {
		s.parent[x] = s.parent[s.parent[x]]
		x = s.parent[x]
	}
	return x
}

func (s *disjointSets) union(x, y int) {
	x, y = s.find(x), s.find(y)
	if x == y {
		return
	}
	switch {
	case s.rank[x] < s.rank[y]:
		s.parent[x] = y
	case s.rank[x] > s.rank[y]:
		s.parent[y] = x
	default:
		s.parent[y] = x
		s.rank[x]++
	}
}

/*
ClusterFunc builds an Assignment from a lazily produced sequence of
scored pairs. forEach is called once and must call add for every pair.

Reads are only added to the assignment when they are part of a pair
that passes the threshold. A read whose pairs are all rejected, or that
never occurs in any pair, ends up in no cluster; see
Assignment.Singletons.
*/
func (c Clusterer) ClusterFunc(forEach func(add func(a, b string, score float64))) *Assignment {
	var sets disjointSets
	indices := make(map[string]int)
	var ids []string
	index := func(id string) int {
		if i, ok := indices[id]; ok {
			return i
		}
		i := sets.add()
		indices[id] = i
		ids = append(ids, id)
		return i
	}
	forEach(func(a, b string, score float64) {
		if c.Keeps(score) {
			sets.union(index(a), index(b))
		}
	})

	// number clusters by the order in which their first member was added
	assignment := &Assignment{clusterOf: make(map[string]int, len(ids))}
	clusterOfRoot := make(map[int]int)
	for i, id := range ids {
		root := sets.find(i)
		cluster, ok := clusterOfRoot[root]
		if !ok {
			cluster = len(assignment.members)
			clusterOfRoot[root] = cluster
			assignment.members = append(assignment.members, nil)
		}
		assignment.clusterOf[id] = cluster
		assignment.members[cluster] = append(assignment.members[cluster], id)
	}
	return assignment
}

// Cluster builds an Assignment from a slice of scored pairs.
func (c Clusterer) Cluster(pairs []Scored) *Assignment {
	return c.ClusterFunc(func(add func(a, b string, score float64)) {
		for _, pair := range pairs {
			add(pair.A, pair.B, pair.Score)
		}
	})
}

// An Assignment maps read identifiers to clusters. Cluster
// identifiers are dense, starting at 0, and only stable within one
// Assignment. An Assignment is never modified after it is built.
type Assignment struct {
	clusterOf map[string]int
	members   [][]string
}

// ClusterOf returns the cluster of the given read, and false if the
// read is in no cluster.
func (a *Assignment) ClusterOf(id string) (int, bool) {
	cluster, ok := a.clusterOf[id]
	return cluster, ok
}

// SameCluster reports whether both reads are in the same cluster.
func (a *Assignment) SameCluster(id1, id2 string) bool {
	c1, ok1 := a.clusterOf[id1]
	c2, ok2 := a.clusterOf[id2]
	return ok1 && ok2 && c1 == c2
}

// Len returns the number of clusters.
func (a *Assignment) Len() int {
	return len(a.members)
}

// Size returns the number of reads that are in some cluster.
func (a *Assignment) Size() int {
	return len(a.clusterOf)
}

// Members returns the reads of the given cluster in the order in which
// they were added. The result must not be modified.
func (a *Assignment) Members(cluster int) []string {
	return a.members[cluster]
}

// Clusters returns the membership of all clusters, each sorted, and
// ordered by their smallest member. Two assignments with equal
// membership have equal Clusters, regardless of cluster identifiers.
func (a *Assignment) Clusters() [][]string {
	result := make([][]string, len(a.members))
	for i, members := range a.members {
		sorted := append([]string(nil), members...)
		sort.Strings(sorted)
		result[i] = sorted
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i][0] < result[j][0]
	})
	return result
}

// Singletons returns the reads of universe, in universe order, that
// are in no cluster.
func (a *Assignment) Singletons(universe []string) []string {
	clustered := bitset.New(uint(len(universe)))
	for i, id := range universe {
		if _, ok := a.clusterOf[id]; ok {
			clustered.Set(uint(i))
		}
	}
	var singletons []string
	for i, ok := clustered.NextClear(0); ok && i < uint(len(universe)); i, ok = clustered.NextClear(i + 1) {
		singletons = append(singletons, universe[i])
	}
	return singletons
}
