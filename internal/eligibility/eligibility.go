// Package eligibility implements the pure pool-membership evaluator (C4):
// given a pool name, a student, and the current event context, it decides
// whether the student belongs to the pool by evaluating the pool's rule
// set. A pool is a logical OR over its rules; rules are a closed set
// (recursion, set difference, set intersection, and various program-state
// predicates), grounded on the suppression engine's style of a small,
// explicit, well-tested rule table (internal/suppression/engine.go) rather
// than a general expression language.
package eligibility

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/email-campaign-agent/internal/store"
)

// ErrMalformedPool is raised when a pool references an unknown rule type,
// is missing a required argument for its rule type, recurses into an
// undefined pool, or forms a cycle.
var ErrMalformedPool = errors.New("eligibility: malformed pool")

// CheckEligibility reports whether student belongs to the named pool,
// evaluated against the current event/sub-event context and the full pool
// table. A pool is eligible iff any one of its attribute rules is
// satisfied.
func CheckEligibility(poolName string, student store.Student, currentEventCode, currentSubEvent string, pools map[string]store.Pool) (bool, error) {
	return evaluate(poolName, student, currentEventCode, currentSubEvent, pools, map[string]bool{})
}

func evaluate(poolName string, student store.Student, currentEventCode, currentSubEvent string, pools map[string]store.Pool, visiting map[string]bool) (bool, error) {
	if visiting[poolName] {
		return false, fmt.Errorf("%w: cycle through pool %q", ErrMalformedPool, poolName)
	}
	pool, ok := pools[poolName]
	if !ok {
		return false, fmt.Errorf("%w: unknown pool %q", ErrMalformedPool, poolName)
	}

	visiting[poolName] = true
	defer delete(visiting, poolName)

	for _, rule := range pool.Attributes {
		ok, err := evalRule(rule, student, currentEventCode, currentSubEvent, pools, visiting)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evalRule(r store.PoolRule, student store.Student, currentEventCode, currentSubEvent string, pools map[string]store.Pool, visiting map[string]bool) (bool, error) {
	switch r.Type {
	case "true":
		return true, nil

	case "pool":
		if r.Name == "" {
			return false, fmt.Errorf("%w: pool rule missing name", ErrMalformedPool)
		}
		return evaluate(r.Name, student, currentEventCode, currentSubEvent, pools, visiting)

	case "pooldiff":
		if r.InPool == "" || r.OutPool == "" {
			return false, fmt.Errorf("%w: pooldiff rule missing inpool/outpool", ErrMalformedPool)
		}
		in, err := evaluate(r.InPool, student, currentEventCode, currentSubEvent, pools, visiting)
		if err != nil {
			return false, err
		}
		if !in {
			return false, nil
		}
		out, err := evaluate(r.OutPool, student, currentEventCode, currentSubEvent, pools, visiting)
		if err != nil {
			return false, err
		}
		return !out, nil

	case "pooland":
		if r.Pool1 == "" || r.Pool2 == "" {
			return false, fmt.Errorf("%w: pooland rule missing pool1/pool2", ErrMalformedPool)
		}
		a, err := evaluate(r.Pool1, student, currentEventCode, currentSubEvent, pools, visiting)
		if err != nil {
			return false, err
		}
		if !a {
			return false, nil
		}
		return evaluate(r.Pool2, student, currentEventCode, currentSubEvent, pools, visiting)

	case "practice":
		if r.Field == "" {
			return false, fmt.Errorf("%w: practice rule missing field", ErrMalformedPool)
		}
		return student.Practice[r.Field], nil

	case "offering":
		if r.AID == "" || r.SubEvent == "" {
			return false, fmt.Errorf("%w: offering rule missing aid/subevent", ErrMalformedPool)
		}
		return hasOffering(student, r.AID, r.SubEvent, true), nil

	case "currenteventoffering":
		return hasOffering(student, currentEventCode, currentSubEvent, true), nil

	case "currenteventnotoffering":
		return !hasOffering(student, currentEventCode, currentSubEvent, false), nil

	case "currenteventtest":
		return programField(student, currentEventCode, func(p store.ProgramState) bool { return p.Test }), nil

	case "offeringandpools":
		if r.AID == "" || r.SubEvent == "" {
			return false, fmt.Errorf("%w: offeringandpools rule missing aid/subevent", ErrMalformedPool)
		}
		if !hasOffering(student, r.AID, r.SubEvent, true) {
			return false, nil
		}
		for _, name := range r.Pools {
			ok, err := evaluate(name, student, currentEventCode, currentSubEvent, pools, visiting)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "oath":
		return programBoolField(student, r.AID, func(p store.ProgramState) bool { return p.Oath }, r)

	case "attended":
		return programBoolField(student, r.AID, func(p store.ProgramState) bool { return p.Attended }, r)

	case "join":
		return programBoolField(student, r.AID, func(p store.ProgramState) bool { return p.Join }, r)

	case "currenteventjoin":
		return programField(student, currentEventCode, func(p store.ProgramState) bool { return p.Join }), nil

	case "currenteventnotjoin":
		return !programField(student, currentEventCode, func(p store.ProgramState) bool { return p.Join }), nil

	case "currenteventaccepted":
		return programField(student, currentEventCode, func(p store.ProgramState) bool { return p.Accepted && !p.Withdrawn }), nil

	case "currenteventmanualinclude":
		return programField(student, currentEventCode, func(p store.ProgramState) bool { return p.ManualInclude }), nil

	case "joinwhich":
		if r.AID == "" || r.Retreat == "" {
			return false, fmt.Errorf("%w: joinwhich rule missing aid/retreat", ErrMalformedPool)
		}
		return joinedWhich(student, r.AID, r.Retreat), nil

	case "offeringwhich":
		if r.AID == "" || r.Retreat == "" || r.SubEvent == "" {
			return false, fmt.Errorf("%w: offeringwhich rule missing aid/retreat/subevent", ErrMalformedPool)
		}
		if !joinedWhich(student, r.AID, r.Retreat) {
			return false, nil
		}
		return offeringKeyPrefixed(student, r.AID, r.SubEvent), nil

	case "eligible":
		return programField(student, currentEventCode, func(p store.ProgramState) bool { return p.Eligible }), nil

	default:
		return false, fmt.Errorf("%w: unknown rule type %q", ErrMalformedPool, r.Type)
	}
}

// programBoolField evaluates a program boolean predicate for rules that
// take an explicit "aid" argument (oath, attended, join).
func programBoolField(student store.Student, aid string, field func(store.ProgramState) bool, r store.PoolRule) (bool, error) {
	if aid == "" {
		return false, fmt.Errorf("%w: %s rule missing aid", ErrMalformedPool, r.Type)
	}
	return programField(student, aid, field), nil
}

func programField(student store.Student, aid string, field func(store.ProgramState) bool) bool {
	p, ok := student.Programs[aid]
	if !ok {
		return false
	}
	return field(p)
}

// hasOffering reports whether student has an offeringSKU recorded for the
// given sub-event under aid. subevent "any" matches any sub-event key.
// When requireNotWithdrawn is true, the program must not be withdrawn.
func hasOffering(student store.Student, aid, subevent string, requireNotWithdrawn bool) bool {
	p, ok := student.Programs[aid]
	if !ok {
		return false
	}
	if requireNotWithdrawn && p.Withdrawn {
		return false
	}
	if subevent == "any" {
		for _, oh := range p.OfferingHistory {
			if oh.OfferingSKU != "" {
				return true
			}
		}
		return false
	}
	oh, ok := p.OfferingHistory[subevent]
	return ok && oh.OfferingSKU != ""
}

// joinedWhich reports whether student joined (and did not withdraw from)
// aid and has at least one truthy whichRetreats key prefixed by retreat.
func joinedWhich(student store.Student, aid, retreat string) bool {
	p, ok := student.Programs[aid]
	if !ok || !p.Join || p.Withdrawn {
		return false
	}
	for key, val := range p.WhichRetreats {
		if val && strings.HasPrefix(key, retreat) {
			return true
		}
	}
	return false
}

// offeringKeyPrefixed reports whether student has an offeringHistory entry
// under aid whose key is prefixed by subevent.
func offeringKeyPrefixed(student store.Student, aid, subevent string) bool {
	p, ok := student.Programs[aid]
	if !ok {
		return false
	}
	for key, oh := range p.OfferingHistory {
		if strings.HasPrefix(key, subevent) && oh.OfferingSKU != "" {
			return true
		}
	}
	return false
}
