package lifecycle

import "fmt"

// Authorizer decides whether acct may act on the record described by m.
// It must be pure: no I/O, no clock.
type Authorizer func(m Meta, acct Account) bool

// Rule names a built-in Authorizer so policies can be configured as data.
type Rule string

// Built-in rules.
const (
	RuleAnyone          Rule = "anyone"
	RuleAuthenticated   Rule = "authenticated"
	RuleOwner           Rule = "owner"
	RuleOwnerOrElevated Rule = "owner_or_elevated"
	RuleElevated        Rule = "elevated"
	RuleNobody          Rule = "nobody"
)

// Rules lists every known rule.
var Rules = []Rule{RuleAnyone, RuleAuthenticated, RuleOwner, RuleOwnerOrElevated, RuleElevated, RuleNobody}

// Valid reports whether r is a known rule.
func (r Rule) Valid() bool {
	for _, known := range Rules {
		if r == known {
			return true
		}
	}
	return false
}

// Authorizer returns the predicate for r. Unknown rules deny everything.
func (r Rule) Authorizer() Authorizer {
	switch r {
	case RuleAnyone:
		return func(Meta, Account) bool { return true }
	case RuleAuthenticated:
		return func(_ Meta, a Account) bool { return !a.IsAnonymous() }
	case RuleOwner:
		return isOwner
	case RuleOwnerOrElevated:
		return func(m Meta, a Account) bool { return a.Elevated || isOwner(m, a) }
	case RuleElevated:
		return func(_ Meta, a Account) bool { return a.Elevated }
	default:
		return func(Meta, Account) bool { return false }
	}
}

func isOwner(m Meta, a Account) bool {
	return !a.IsAnonymous() && m.OwnerID == a.ID
}

// DeletionMode selects how Delete removes a record.
type DeletionMode string

const (
	// HardDelete removes the row.
	HardDelete DeletionMode = "hard"
	// SoftDelete stamps DeletedAt and keeps the row.
	SoftDelete DeletionMode = "soft"
)

// Valid reports whether d is a known mode.
func (d DeletionMode) Valid() bool {
	return d == HardDelete || d == SoftDelete
}

// Policy holds the per-type authorization predicates and deletion mode.
type Policy struct {
	Create   Authorizer
	Update   Authorizer
	Delete   Authorizer
	Deletion DeletionMode
}

// RulePolicy builds a Policy from named rules.
func RulePolicy(create, update, del Rule, deletion DeletionMode) (Policy, error) {
	for _, r := range []Rule{create, update, del} {
		if !r.Valid() {
			return Policy{}, fmt.Errorf("unknown rule %q", r)
		}
	}
	if !deletion.Valid() {
		return Policy{}, fmt.Errorf("unknown deletion mode %q", deletion)
	}
	return Policy{
		Create:   create.Authorizer(),
		Update:   update.Authorizer(),
		Delete:   del.Authorizer(),
		Deletion: deletion,
	}, nil
}

// MustRulePolicy is RulePolicy for compile-time constants.
func MustRulePolicy(create, update, del Rule, deletion DeletionMode) Policy {
	p, err := RulePolicy(create, update, del, deletion)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) allowCreate(m Meta, a Account) bool { return allow(p.Create, m, a) }
func (p Policy) allowUpdate(m Meta, a Account) bool { return allow(p.Update, m, a) }
func (p Policy) allowDelete(m Meta, a Account) bool { return allow(p.Delete, m, a) }

// A nil predicate denies.
func allow(fn Authorizer, m Meta, a Account) bool {
	return fn != nil && fn(m, a)
}
