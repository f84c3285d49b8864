package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/model"
)

// PolicyRules is the serialized form of a lifecycle.Policy.
type PolicyRules struct {
	Create   lifecycle.Rule         `yaml:"create"`
	Update   lifecycle.Rule         `yaml:"update"`
	Delete   lifecycle.Rule         `yaml:"delete"`
	Deletion lifecycle.DeletionMode `yaml:"deletion"`
}

// Policy builds the lifecycle policy described by r.
func (r PolicyRules) Policy() (lifecycle.Policy, error) {
	return lifecycle.RulePolicy(r.Create, r.Update, r.Delete, r.Deletion)
}

type policyFile struct {
	Policies map[string]PolicyRules `yaml:"policies"`
}

// DefaultPolicies returns the compiled-in rules per resource kind.
func DefaultPolicies() map[string]PolicyRules {
	return map[string]PolicyRules{
		model.KindBlog: {
			Create: lifecycle.RuleAnyone, Update: lifecycle.RuleOwner,
			Delete: lifecycle.RuleOwnerOrElevated, Deletion: lifecycle.SoftDelete,
		},
		model.KindBlogPost: {
			Create: lifecycle.RuleAnyone, Update: lifecycle.RuleOwner,
			Delete: lifecycle.RuleOwnerOrElevated, Deletion: lifecycle.HardDelete,
		},
		model.KindContact: {
			Create: lifecycle.RuleElevated, Update: lifecycle.RuleElevated,
			Delete: lifecycle.RuleElevated, Deletion: lifecycle.HardDelete,
		},
		model.KindContactMessage: {
			Create: lifecycle.RuleAnyone, Update: lifecycle.RuleElevated,
			Delete: lifecycle.RuleElevated, Deletion: lifecycle.HardDelete,
		},
		model.KindPage: {
			Create: lifecycle.RuleAnyone, Update: lifecycle.RuleOwnerOrElevated,
			Delete: lifecycle.RuleOwnerOrElevated, Deletion: lifecycle.HardDelete,
		},
		model.KindVideo: {
			Create: lifecycle.RuleAnyone, Update: lifecycle.RuleOwner,
			Delete: lifecycle.RuleOwner, Deletion: lifecycle.HardDelete,
		},
	}
}

// LoadPolicies returns the policy for every resource kind. When path is set,
// the YAML file at path overrides individual fields of the defaults:
//
//	policies:
//	  page:
//	    update: owner
//	    deletion: soft
func LoadPolicies(path string) (map[string]lifecycle.Policy, error) {
	rules := DefaultPolicies()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy file: %w", err)
		}
		if err := mergePolicies(rules, raw); err != nil {
			return nil, fmt.Errorf("policy file %s: %w", path, err)
		}
	}

	out := make(map[string]lifecycle.Policy, len(rules))
	for kind, r := range rules {
		p, err := r.Policy()
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", kind, err)
		}
		out[kind] = p
	}
	return out, nil
}

func mergePolicies(rules map[string]PolicyRules, raw []byte) error {
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	for kind, override := range f.Policies {
		base, ok := rules[kind]
		if !ok {
			return fmt.Errorf("unknown resource kind %q", kind)
		}
		if override.Create != "" {
			base.Create = override.Create
		}
		if override.Update != "" {
			base.Update = override.Update
		}
		if override.Delete != "" {
			base.Delete = override.Delete
		}
		if override.Deletion != "" {
			base.Deletion = override.Deletion
		}
		rules[kind] = base
	}
	return nil
}
