// Package model defines the entities, verdicts, and run records shared by the
// analysis, storage, and export layers.
package model

import (
	"github.com/sells-group/schoolsite/internal/geo"
)

// FunctionalStatus is the reported operating state of a school.
type FunctionalStatus string

const (
	StatusFunctional    FunctionalStatus = "Functional"
	StatusNonFunctional FunctionalStatus = "Non-Functional"
	StatusUnknown       FunctionalStatus = ""
)

// ParseFunctional maps raw status labels ("Functional", "non functional",
// "yes", "closed") to a FunctionalStatus.
func ParseFunctional(raw string) FunctionalStatus {
	switch NormalizeRegion(raw) {
	case "Functional", "Yes", "Y", "Open", "Active", "1", "True":
		return StatusFunctional
	case "Non-Functional", "Non Functional", "Nonfunctional", "No", "N", "Closed", "Inactive", "0", "False":
		return StatusNonFunctional
	}
	return StatusUnknown
}

// Attributes is the descriptive bag carried for reporting. Enrollment also
// feeds the density and upgrade rules.
type Attributes struct {
	Enrollment int               `json:"enrollment"`
	Functional FunctionalStatus  `json:"functional,omitempty"`
	Gender     string            `json:"gender,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Entity is a school or candidate site.
type Entity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Level      Level      `json:"level"`
	Type       SchoolType `json:"type,omitempty"`
	Region     Region     `json:"region"`
	Location   geo.Point  `json:"location"`
	Attributes Attributes `json:"attributes"`
}

// Functional reports whether the entity is known to be operating.
func (e Entity) Functional() bool {
	return e.Attributes.Functional == StatusFunctional
}
