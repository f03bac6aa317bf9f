package reconcile

import (
	"context"

	"github.com/busatlas/busatlas/pkg/timetable"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServiceFinder is the slice of the store that service matching needs.
type ServiceFinder interface {
	ServiceByUniqueCode(ctx context.Context, code string) (*timetable.Service, error)
	ServicesByLineName(ctx context.Context, lineName string) ([]*timetable.Service, error)
	ServiceBySourceCode(ctx context.Context, source string, serviceCode string) (*timetable.Service, error)
	ServiceHasRoutes(ctx context.Context, serviceID primitive.ObjectID) (bool, error)
	RouteWithServiceCodeExists(ctx context.Context, serviceID primitive.ObjectID, serviceCode string) (bool, error)
	ServiceCallsAtStops(ctx context.Context, serviceID primitive.ObjectID, stops []string) (bool, error)
	ServiceUsesStops(ctx context.Context, serviceID primitive.ObjectID, stops []string) (bool, error)
}

// OperatorFinder is the slice of the store that operator resolution needs.
type OperatorFinder interface {
	OperatorByNOC(ctx context.Context, noc string) (*timetable.Operator, error)
	OperatorsByLicence(ctx context.Context, licenceNumber string) ([]*timetable.Operator, error)
	OperatorsByName(ctx context.Context, name string) ([]*timetable.Operator, error)
	OperatorNOCsByParent(ctx context.Context, parent string) ([]string, error)
}
