package config

import (
	"fmt"
	"os"

	"github.com/cmlabs-hris/hris-ledger-go/internal/domain/leave"
	"gopkg.in/yaml.v3"
)

type leavePolicyFile struct {
	Policies map[string]struct {
		MaxDays               *int  `yaml:"max_days"`
		RequiresDocumentation *bool `yaml:"requires_documentation"`
	} `yaml:"policies"`
	Allotments map[string]int `yaml:"allotments"`
}

// LoadLeaveDefaults returns the built-in leave defaults overlaid with the
// YAML file at path. An empty path returns the built-in defaults.
//
//	policies:
//	  sick: {max_days: 14, requires_documentation: true}
//	allotments:
//	  vacation: 20
func LoadLeaveDefaults(path string) (leave.Defaults, error) {
	defaults := leave.DefaultSettings()
	if path == "" {
		return defaults, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return leave.Defaults{}, fmt.Errorf("failed to read leave policy file: %w", err)
	}

	var file leavePolicyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return leave.Defaults{}, fmt.Errorf("failed to parse leave policy file: %w", err)
	}

	for name, p := range file.Policies {
		t := leave.Type(name)
		policy, ok := defaults.Policies[t]
		if !ok {
			return leave.Defaults{}, fmt.Errorf("leave policy file: unknown leave type %q", name)
		}
		if p.MaxDays != nil {
			if *p.MaxDays < 0 {
				return leave.Defaults{}, fmt.Errorf("leave policy file: %s.max_days must not be negative", name)
			}
			policy.MaxDays = *p.MaxDays
		}
		if p.RequiresDocumentation != nil {
			policy.RequiresDocumentation = *p.RequiresDocumentation
		}
		defaults.Policies[t] = policy
	}

	for name, days := range file.Allotments {
		t := leave.Type(name)
		if _, ok := defaults.Allotments[t]; !ok {
			return leave.Defaults{}, fmt.Errorf("leave policy file: %q has no allotment", name)
		}
		if days < 0 {
			return leave.Defaults{}, fmt.Errorf("leave policy file: allotment %s must not be negative", name)
		}
		defaults.Allotments[t] = days
	}

	return defaults, nil
}
