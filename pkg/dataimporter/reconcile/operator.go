package reconcile

import (
	"context"

	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/rs/zerolog/log"
)

// regionalOperatorCodes maps the short scheme codes regional feeds use onto
// national operator codes, per region.
var regionalOperatorCodes = map[string]map[string]string{
	"EA": {
		"FESX": "FESX",
		"KCTB": "KCTB",
		"GAPL": "GPLM",
	},
	"EM": {
		"TB": "TBTN",
		"NT": "NCTR",
	},
	"L": {
		"TFL": "TFLO",
	},
	"NE": {
		"GNE": "GNEL",
		"ANE": "ANEA",
	},
	"NW": {
		"SCMN": "SCMN",
		"GONW": "GONW",
	},
	"S": {
		"FSYO": "FSYO",
	},
	"SW": {
		"FDC": "FDOR",
	},
	"W": {
		"FCYM": "FCYM",
	},
	"Y": {
		"HCT": "HCTY",
	},
}

// MissingOperator records an operator reference nothing could resolve, for
// offline triage. The owning route is still imported without it.
type MissingOperator struct {
	NOC           string
	LicenceNumber string
	Name          string
	Code          string
	Region        string
	Source        string
}

// OperatorResolver resolves the inconsistent operator references feeds use
// onto stored operators. Lookups are memoized for the lifetime of the
// resolver, which is one import run.
type OperatorResolver struct {
	finder OperatorFinder
	region string
	source string

	memo    map[timetable.OperatorCandidate]string
	Missing []MissingOperator
}

func NewOperatorResolver(finder OperatorFinder, region string, source string) *OperatorResolver {
	return &OperatorResolver{
		finder: finder,
		region: region,
		source: source,
		memo:   map[timetable.OperatorCandidate]string{},
	}
}

// Resolve returns the NOC of the operator the candidate refers to, or empty
// when it cannot be resolved. Resolution order: national operator code,
// licence number, exact name (ambiguous counts as a miss), then the
// regional code table.
func (r *OperatorResolver) Resolve(ctx context.Context, candidate timetable.OperatorCandidate) (string, error) {
	if noc, seen := r.memo[candidate]; seen {
		return noc, nil
	}

	noc, err := r.resolve(ctx, candidate)
	if err != nil {
		return "", err
	}

	r.memo[candidate] = noc

	if noc == "" {
		r.Missing = append(r.Missing, MissingOperator{
			NOC:           candidate.NOC,
			LicenceNumber: candidate.LicenceNumber,
			Name:          candidate.Name,
			Code:          candidate.Code,
			Region:        r.region,
			Source:        r.source,
		})
		log.Debug().
			Str("noc", candidate.NOC).
			Str("name", candidate.Name).
			Str("code", candidate.Code).
			Msg("Could not resolve operator")
	}

	return noc, nil
}

func (r *OperatorResolver) resolve(ctx context.Context, candidate timetable.OperatorCandidate) (string, error) {
	if candidate.NOC != "" {
		operator, err := r.finder.OperatorByNOC(ctx, candidate.NOC)
		if err != nil {
			return "", err
		}
		if operator != nil {
			return operator.NOC, nil
		}
	}

	if candidate.LicenceNumber != "" {
		operators, err := r.finder.OperatorsByLicence(ctx, candidate.LicenceNumber)
		if err != nil {
			return "", err
		}
		if len(operators) == 1 {
			return operators[0].NOC, nil
		}
	}

	if candidate.Name != "" {
		operators, err := r.finder.OperatorsByName(ctx, candidate.Name)
		if err != nil {
			return "", err
		}
		// more than one operator with the name means we cannot tell which
		if len(operators) == 1 {
			return operators[0].NOC, nil
		}
	}

	if candidate.Code != "" {
		if noc := regionalOperatorCodes[r.region][candidate.Code]; noc != "" {
			operator, err := r.finder.OperatorByNOC(ctx, noc)
			if err != nil {
				return "", err
			}
			if operator != nil {
				return operator.NOC, nil
			}
		}
	}

	return "", nil
}
