package lifecycle

import "testing"

func TestRuleAuthorizer(t *testing.T) {
	owned := Meta{ID: "r1", OwnerID: "alice"}
	orphan := Meta{ID: "r2"}

	alice := Account{ID: "alice"}
	bob := Account{ID: "bob"}
	admin := Account{ID: "root", Elevated: true}
	anon := Account{}

	tests := []struct {
		rule Rule
		meta Meta
		acct Account
		want bool
	}{
		{RuleAnyone, owned, anon, true},
		{RuleAuthenticated, owned, anon, false},
		{RuleAuthenticated, owned, bob, true},
		{RuleOwner, owned, alice, true},
		{RuleOwner, owned, bob, false},
		{RuleOwner, owned, admin, false},
		{RuleOwner, orphan, anon, false},
		{RuleOwnerOrElevated, owned, alice, true},
		{RuleOwnerOrElevated, owned, admin, true},
		{RuleOwnerOrElevated, owned, bob, false},
		{RuleElevated, owned, alice, false},
		{RuleElevated, owned, admin, true},
		{RuleNobody, owned, admin, false},
		{Rule("bogus"), owned, admin, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.rule)+"/"+tt.acct.ID, func(t *testing.T) {
			if got := tt.rule.Authorizer()(tt.meta, tt.acct); got != tt.want {
				t.Errorf("%s(%+v, %+v) = %v, want %v", tt.rule, tt.meta, tt.acct, got, tt.want)
			}
		})
	}
}

func TestRulePolicy_RejectsUnknown(t *testing.T) {
	if _, err := RulePolicy(RuleOwner, "sometimes", RuleOwner, HardDelete); err == nil {
		t.Error("expected error for unknown rule")
	}
	if _, err := RulePolicy(RuleOwner, RuleOwner, RuleOwner, "shred"); err == nil {
		t.Error("expected error for unknown deletion mode")
	}
	p, err := RulePolicy(RuleElevated, RuleOwner, RuleOwnerOrElevated, SoftDelete)
	if err != nil {
		t.Fatalf("RulePolicy: %v", err)
	}
	if p.Deletion != SoftDelete {
		t.Errorf("Deletion = %q, want soft", p.Deletion)
	}
}

func TestPolicy_NilPredicateDenies(t *testing.T) {
	var p Policy
	if p.allowCreate(Meta{}, Account{ID: "x", Elevated: true}) {
		t.Error("zero policy should deny create")
	}
}
