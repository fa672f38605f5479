package chrono

import (
	"time"
	_ "time/tzdata"
)

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl returns a clock in America/Sao_Paulo, the timezone of the directory.
func NewStandardImpl() (StandardImpl, error) {
	location, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant.
type FixedImpl struct {
	instant time.Time
}

func NewFixedImpl(instant time.Time) FixedImpl {
	return FixedImpl{instant: instant}
}

func (f FixedImpl) Now() time.Time {
	return f.instant
}

func (f FixedImpl) Location() *time.Location {
	return f.instant.Location()
}
