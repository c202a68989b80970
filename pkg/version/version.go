// Package version holds the SOFTWARE_VERSION support table and the
// dotted-version comparison used to decide whether a node's reported
// component versions are supported or not.
package version

import (
	"fmt"

	hcversion "github.com/hashicorp/go-version"
)

// Support describes the version policy for one named component: the
// inclusive range of versions ORR will operate against, and whether a node
// missing the component entirely is a failure.
type Support struct {
	Minimum  string
	Maximum  string
	Required bool
}

// Kind distinguishes the two namespaces versions are reported in: the
// agent plugin's own components, and the OpenDNSSEC/SoftHSM programs it
// wraps.
type Kind string

const (
	KindPlugin  Kind = "plugin"
	KindProgram Kind = "program"
)

// table is the compiled-in SOFTWARE_VERSION support matrix from the
// external interface catalogue.
var table = map[Kind]map[string]Support{
	KindPlugin: {
		"Agent":      {Minimum: "0.19", Maximum: "0.19", Required: true},
		"OpenDNSSEC": {Minimum: "0.14", Maximum: "0.14", Required: true},
		"SoftHSM":    {Minimum: "0.14", Maximum: "0.14", Required: false},
		"DNS":        {Minimum: "0.12", Maximum: "0.12", Required: false},
	},
	KindProgram: {
		"ods-control":   {Minimum: "1", Maximum: "1", Required: true},
		"ods-signerd":   {Minimum: "1.3.14", Maximum: "1.3.15", Required: true},
		"ods-signer":    {Minimum: "1.3.14", Maximum: "1.3.15", Required: true},
		"ods-enforcerd": {Minimum: "1.3.14", Maximum: "1.3.15", Required: true},
		"ods-ksmutil":   {Minimum: "1.3.14", Maximum: "1.3.15", Required: true},
		"ods-hsmutil":   {Minimum: "1.3.14", Maximum: "1.3.15", Required: false},
		"softhsm":       {Minimum: "1.3.3", Maximum: "1.3.5", Required: false},
	},
}

// Lookup returns the support policy for a named component, if ORR tracks
// one.
func Lookup(kind Kind, component string) (Support, bool) {
	s, ok := table[kind][component]
	return s, ok
}

// MissingComponentError reports that a required component was not present
// in a node's reported versions at all.
type MissingComponentError struct {
	Component string
}

func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("component %q is required but was not reported", e.Component)
}

// UnsupportedVersionError reports that a component's reported version lies
// outside the supported [min, max] range. Its fields carry enough to
// reproduce the exact operator-facing message the Cluster Manager logs.
// NodeID is optional: callers that know which node reported the version
// set it so Error() can place the node clause where the operator-facing
// text expects it, between the version and "is not supported".
type UnsupportedVersionError struct {
	Component string
	Reported  string
	Minimum   string
	Maximum   string
	NodeID    string
}

func (e *UnsupportedVersionError) Error() string {
	node := ""
	if e.NodeID != "" {
		node = fmt.Sprintf(" on node %s", e.NodeID)
	}
	return fmt.Sprintf("Software %s version %s%s is not supported. Supported are minimum version %s and maximum version %s",
		e.Component, e.Reported, node, e.Minimum, e.Maximum)
}

// Check compares a reported version string against a component's supported
// [min, max] range. An empty reported string is only acceptable for
// non-required components. Components ORR does not track are ignored.
func Check(kind Kind, component, reported string) error {
	support, known := Lookup(kind, component)
	if !known {
		return nil
	}

	if reported == "" {
		if support.Required {
			return &MissingComponentError{Component: component}
		}
		return nil
	}

	got, err := hcversion.NewVersion(reported)
	if err != nil {
		return fmt.Errorf("component %q reported unparseable version %q: %w", component, reported, err)
	}

	min, err := hcversion.NewVersion(support.Minimum)
	if err != nil {
		return fmt.Errorf("component %q has an invalid minimum version %q: %w", component, support.Minimum, err)
	}
	max, err := hcversion.NewVersion(support.Maximum)
	if err != nil {
		return fmt.Errorf("component %q has an invalid maximum version %q: %w", component, support.Maximum, err)
	}

	if got.LessThan(min) || got.GreaterThan(max) {
		return &UnsupportedVersionError{
			Component: component,
			Reported:  reported,
			Minimum:   support.Minimum,
			Maximum:   support.Maximum,
		}
	}
	return nil
}

// CheckAll validates a full set of reported component versions for one
// kind, returning the first failure encountered: a missing required
// component, or the first out-of-range version.
func CheckAll(kind Kind, reported map[string]string) error {
	for component, support := range table[kind] {
		if !support.Required {
			continue
		}
		if _, ok := reported[component]; !ok {
			return &MissingComponentError{Component: component}
		}
	}
	for component, v := range reported {
		if err := Check(kind, component, v); err != nil {
			return err
		}
	}
	return nil
}
