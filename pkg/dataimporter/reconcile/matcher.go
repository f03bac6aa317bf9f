package reconcile

import (
	"context"
	"strings"

	"github.com/busatlas/busatlas/pkg/timetable"
)

// Matcher decides which stored service an incoming candidate belongs to.
type Matcher struct {
	finder ServiceFinder

	// Source is the data source identifier of the running import.
	Source string
	// SourceScoped marks region scoped sources whose service codes are
	// stable within the source, enabling the final fallback match.
	SourceScoped bool
}

func NewMatcher(finder ServiceFinder, source string, sourceScoped bool) *Matcher {
	return &Matcher{
		finder:       finder,
		Source:       source,
		SourceScoped: sourceScoped,
	}
}

// Find locates the existing service for a candidate, or returns nil when a
// new one should be created. resolvedNOCs are the candidate's operators
// after resolution. A shared line name alone is never enough: two services
// numbered 7 at opposite ends of the country must stay distinct. The
// candidate has to share an operator, call at a shared stop, or carry a
// service code already recorded against this source. First match wins:
//  1. globally unique service code
//  2. same line name and an operator in common, narrowed by stop overlap
//     then route service code when several qualify
//  3. same line name and stop overlap, or stop usage overlap on a service
//     with no timetable yet
//  4. for source scoped imports, the service code recorded against this
//     exact source or one of its routes
func (m *Matcher) Find(ctx context.Context, candidate *timetable.ServiceCandidate, resolvedNOCs []string) (*timetable.Service, error) {
	if candidate.UniqueCode != "" {
		service, err := m.finder.ServiceByUniqueCode(ctx, candidate.UniqueCode)
		if err != nil || service != nil {
			return service, err
		}
	}

	byLineName, err := m.finder.ServicesByLineName(ctx, candidate.LineName)
	if err != nil {
		return nil, err
	}

	sharedOperator := m.narrowByOperator(byLineName, resolvedNOCs)

	if len(sharedOperator) > 1 {
		service, err := m.narrowByStops(ctx, sharedOperator, candidate)
		if err != nil || service != nil {
			return service, err
		}

		if m.SourceScoped && candidate.ServiceCode != "" {
			service, err := m.matchByRouteServiceCode(ctx, sharedOperator, candidate.ServiceCode)
			if err != nil || service != nil {
				return service, err
			}
		}
	}

	if len(sharedOperator) > 0 {
		return sharedOperator[0], nil
	}

	// no operator in common, positional or code evidence is required
	service, err := m.narrowByStops(ctx, byLineName, candidate)
	if err != nil || service != nil {
		return service, err
	}

	if m.SourceScoped && candidate.ServiceCode != "" {
		service, err := m.finder.ServiceBySourceCode(ctx, m.Source, candidate.ServiceCode)
		if err != nil || service != nil {
			return service, err
		}

		// the service code may only be recorded on the routes
		return m.matchByRouteServiceCode(ctx, byLineName, candidate.ServiceCode)
	}

	return nil, nil
}

// narrowByOperator keeps the services sharing an operator with the
// candidate. No resolved operators, or no overlap, narrows to nothing.
func (m *Matcher) narrowByOperator(services []*timetable.Service, resolvedNOCs []string) []*timetable.Service {
	if len(resolvedNOCs) == 0 {
		return nil
	}

	nocs := map[string]bool{}
	for _, noc := range resolvedNOCs {
		nocs[strings.ToUpper(noc)] = true
	}

	var narrowed []*timetable.Service
	for _, service := range services {
		for _, operatorRef := range service.OperatorRefs {
			if nocs[strings.ToUpper(operatorRef)] {
				narrowed = append(narrowed, service)
				break
			}
		}
	}

	return narrowed
}

func (m *Matcher) matchByRouteServiceCode(ctx context.Context, candidates []*timetable.Service, serviceCode string) (*timetable.Service, error) {
	for _, existing := range candidates {
		matches, err := m.finder.RouteWithServiceCodeExists(ctx, existing.ID, serviceCode)
		if err != nil {
			return nil, err
		}
		if matches {
			return existing, nil
		}
	}
	return nil, nil
}

// narrowByStops prefers a service that already calls at one of the incoming
// stops, or one that uses such a stop but has no timetable at all yet.
func (m *Matcher) narrowByStops(ctx context.Context, candidates []*timetable.Service, incoming *timetable.ServiceCandidate) (*timetable.Service, error) {
	stops := incomingStops(incoming)
	if len(stops) == 0 {
		return nil, nil
	}

	for _, service := range candidates {
		callsAt, err := m.finder.ServiceCallsAtStops(ctx, service.ID, stops)
		if err != nil {
			return nil, err
		}
		if callsAt {
			return service, nil
		}

		usesStops, err := m.finder.ServiceUsesStops(ctx, service.ID, stops)
		if err != nil {
			return nil, err
		}
		if usesStops {
			hasRoutes, err := m.finder.ServiceHasRoutes(ctx, service.ID)
			if err != nil {
				return nil, err
			}
			if !hasRoutes {
				return service, nil
			}
		}
	}

	return nil, nil
}

func incomingStops(candidate *timetable.ServiceCandidate) []string {
	seen := map[string]bool{}
	var stops []string

	for _, route := range candidate.Routes {
		for _, trip := range route.Trips {
			for _, stopTime := range trip.StopTimes {
				if !seen[stopTime.StopRef] {
					seen[stopTime.StopRef] = true
					stops = append(stops, stopTime.StopRef)
				}
			}
		}
	}

	return stops
}
