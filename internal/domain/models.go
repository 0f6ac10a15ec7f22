package domain

import (
	"fmt"
	"slices"
	"time"
)

type Family string

const (
	FamilyRegular Family = "regular"
	FamilyCombine Family = "combine"
)

type Entity string

const (
	EntityShots      Entity = "shots"
	EntityShotGroups Entity = "shot_groups"
)

// Collection names one accumulation of per-fetch tables, e.g. the combine
// shot groups.
type Collection struct {
	Family Family
	Entity Entity
}

var (
	RegularShots       = Collection{Family: FamilyRegular, Entity: EntityShots}
	RegularShotGroups  = Collection{Family: FamilyRegular, Entity: EntityShotGroups}
	CombineShots       = Collection{Family: FamilyCombine, Entity: EntityShots}
	CombineShotGroups  = Collection{Family: FamilyCombine, Entity: EntityShotGroups}
	regularCollections = []Collection{RegularShots, RegularShotGroups}
	combineCollections = []Collection{CombineShots, CombineShotGroups}
)

func CollectionsFor(family Family) []Collection {
	if family == FamilyCombine {
		return slices.Clone(combineCollections)
	}
	return slices.Clone(regularCollections)
}

// Name is the file prefix of the collection: shot_data, shot_groups,
// combine_shot_data, combine_shot_groups.
func (c Collection) Name() string {
	base := "shot_data"
	if c.Entity == EntityShotGroups {
		base = "shot_groups"
	}
	if c.Family == FamilyCombine {
		return "combine_" + base
	}
	return base
}

// CanonicalFile is the well-known file name of the reconciled table.
func (c Collection) CanonicalFile() string {
	base := "combined_shot_data.csv"
	if c.Entity == EntityShotGroups {
		base = "combined_shot_groups.csv"
	}
	if c.Family == FamilyCombine {
		return "combine_" + base
	}
	return base
}

func (c Collection) String() string {
	return c.Name()
}

func ParseCollection(name string) (Collection, error) {
	for _, c := range append(CollectionsFor(FamilyRegular), CollectionsFor(FamilyCombine)...) {
		if c.Name() == name {
			return c, nil
		}
	}
	return Collection{}, fmt.Errorf("unknown collection %q", name)
}

// Batch is the flat table produced by one fetch of one report.
type Batch struct {
	ID        string
	ReportID  string
	FetchedAt time.Time
	Table     *Table
}

type URLStatus string

const (
	StatusPending        URLStatus = "Pending"
	StatusSuccess        URLStatus = "Success"
	StatusSuccessCombine URLStatus = "Success (Combine)"
)

func ErrorStatus(reason string) URLStatus {
	return URLStatus("Error: " + reason)
}

// ReportURL is one ledger entry. Family is the mode the URL was submitted
// with, so a pending retry imports it the same way.
type ReportURL struct {
	ID         string
	URL        string
	Status     URLStatus
	Family     Family
	ImportedAt time.Time
	UpdatedAt  time.Time
}
