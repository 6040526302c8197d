// Package partition assigns base images to the train, valid and test pools.
//
// Membership is a fixed mapping from numeric image id to pool. The mapping is
// an immutable [Config] handed to [New]; [Reference] returns the 44-image
// configuration the dataset was built with.
package partition

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/defectset/pkg/errors"
)

// Partition is a dataset pool. The zero value is Unassigned.
type Partition int

const (
	Unassigned Partition = iota
	Train
	Valid
	Test
)

// All lists the assignable partitions in directory order.
var All = []Partition{Train, Valid, Test}

func (p Partition) String() string {
	switch p {
	case Train:
		return "train"
	case Valid:
		return "valid"
	case Test:
		return "test"
	default:
		return "unassigned"
	}
}

// Parse returns the partition named s.
func Parse(s string) (Partition, error) {
	for _, p := range All {
		if p.String() == s {
			return p, nil
		}
	}
	return Unassigned, fmt.Errorf("unknown partition %q", s)
}

// Config holds the id sets of each pool.
type Config struct {
	Train []int `toml:"train"`
	Valid []int `toml:"valid"`
	Test  []int `toml:"test"`
}

// Len returns the total number of ids across all pools.
func (c Config) Len() int {
	return len(c.Train) + len(c.Valid) + len(c.Test)
}

// Reference returns the reference membership: 26 train, 10 valid and 8 test
// images out of ids 1..44.
func Reference() Config {
	return Config{
		Train: []int{5, 16, 13, 32, 7, 23, 29, 18, 22, 40, 27, 14, 33, 20, 25, 39, 36, 34, 42, 1, 10, 37, 3, 6, 9, 28},
		Valid: []int{2, 31, 12, 11, 15, 19, 21, 41, 35, 44},
		Test:  []int{17, 8, 30, 43, 24, 4, 26, 38},
	}
}

// Assigner maps image ids to partitions.
type Assigner struct {
	members map[int]Partition
}

// New validates cfg and builds an Assigner. An id listed in more than one
// pool is a CONFIGURATION error.
func New(cfg Config) (*Assigner, error) {
	a := &Assigner{members: make(map[int]Partition, cfg.Len())}
	sets := []struct {
		p   Partition
		ids []int
	}{{Train, cfg.Train}, {Valid, cfg.Valid}, {Test, cfg.Test}}

	for _, s := range sets {
		for _, id := range s.ids {
			if prev, ok := a.members[id]; ok {
				if prev == s.p {
					return nil, errors.New(errors.ErrCodeConfiguration, "id %d listed twice in %s", id, s.p)
				}
				return nil, errors.New(errors.ErrCodeConfiguration, "id %d is in both %s and %s", id, prev, s.p)
			}
			a.members[id] = s.p
		}
	}
	return a, nil
}

// Assign returns the partition of id, or Unassigned.
func (a *Assigner) Assign(id int) Partition {
	return a.members[id]
}

// AssignName assigns a file by the numeric id prefix of its base name, the
// text before the first underscore ("12_bk_r90_c0" has id 12). A base name
// without a numeric prefix yields Unassigned and a SKIPPABLE_INPUT error. An
// unknown id yields Unassigned with a nil error; callers warn and skip.
func (a *Assigner) AssignName(base string) (Partition, error) {
	id, err := ID(base)
	if err != nil {
		return Unassigned, err
	}
	return a.Assign(id), nil
}

// IDs returns the ids of p in ascending order.
func (a *Assigner) IDs(p Partition) []int {
	var ids []int
	for id, q := range a.members {
		if q == p {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of assigned ids.
func (a *Assigner) Len() int { return len(a.members) }

// ID parses the numeric id prefix of a base name.
func ID(base string) (int, error) {
	prefix, _, _ := strings.Cut(base, "_")
	id, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeSkippableInput, err, "no numeric id in %q", base)
	}
	return id, nil
}
