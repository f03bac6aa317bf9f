package formats

import (
	"io"

	"github.com/busatlas/busatlas/pkg/timetable"
)

// Format parses one wire format into service candidates. A parser is fed
// one file at a time and accumulates candidates across the files of an
// archive; the filename is part of the contract because several formats
// derive route and service codes from it.
type Format interface {
	ParseFile(reader io.Reader, filename string) error
	Candidates() []*timetable.ServiceCandidate
}
