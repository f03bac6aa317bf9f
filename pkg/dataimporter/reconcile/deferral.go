package reconcile

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Deferrer skips services from legacy sources when a complete open data
// source already covers every operator running them. Coverage extends to
// the whole operator family: a sibling under the same parent being covered
// covers the operator too.
type Deferrer struct {
	finder OperatorFinder

	// CoveredNOCs is the union of operator scopes of every registered
	// complete source other than the one being imported.
	CoveredNOCs map[string]bool

	familyMemo map[string]bool
}

func NewDeferrer(finder OperatorFinder, coveredNOCs []string) *Deferrer {
	covered := map[string]bool{}
	for _, noc := range coveredNOCs {
		covered[noc] = true
	}

	return &Deferrer{
		finder:      finder,
		CoveredNOCs: covered,
		familyMemo:  map[string]bool{},
	}
}

// ShouldDefer reports whether a service run by the given resolved operators
// should be skipped. Every operator must be covered; a single uncovered
// operator keeps the service in the import.
func (d *Deferrer) ShouldDefer(ctx context.Context, resolvedNOCs []string) (bool, error) {
	if len(resolvedNOCs) == 0 || len(d.CoveredNOCs) == 0 {
		return false, nil
	}

	for _, noc := range resolvedNOCs {
		covered, err := d.operatorCovered(ctx, noc)
		if err != nil {
			return false, err
		}
		if !covered {
			return false, nil
		}
	}

	log.Debug().Strs("operators", resolvedNOCs).Msg("Deferring to complete source")
	return true, nil
}

func (d *Deferrer) operatorCovered(ctx context.Context, noc string) (bool, error) {
	if covered, seen := d.familyMemo[noc]; seen {
		return covered, nil
	}

	covered := d.CoveredNOCs[noc]

	if !covered {
		operator, err := d.finder.OperatorByNOC(ctx, noc)
		if err != nil {
			return false, err
		}

		if operator != nil && operator.Parent != "" {
			siblings, err := d.finder.OperatorNOCsByParent(ctx, operator.Parent)
			if err != nil {
				return false, err
			}
			for _, sibling := range siblings {
				if d.CoveredNOCs[sibling] {
					covered = true
					break
				}
			}
		}
	}

	d.familyMemo[noc] = covered
	return covered, nil
}
