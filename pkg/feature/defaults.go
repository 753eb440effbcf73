package feature

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Default flag names.
const (
	FlagUserRegistration  = "user_registration"
	FlagBetaFeatures      = "beta_features"
	FlagAdvancedAnalytics = "advanced_analytics"
)

// Defaults returns the flag set installed when no seed file is configured.
func Defaults() []*Flag {
	return []*Flag{
		{
			Name:              FlagUserRegistration,
			Description:       "Allow new accounts to sign up",
			Enabled:           true,
			RolloutPercentage: 100,
		},
		{
			Name:              FlagBetaFeatures,
			Description:       "Early access features for paying tiers",
			Enabled:           false,
			RolloutPercentage: 10,
			Conditions:        map[string][]string{"user_tier": {"premium", "enterprise"}},
			Tags:              []string{"beta"},
		},
		{
			Name:              FlagAdvancedAnalytics,
			Description:       "Advanced analytics dashboards",
			Enabled:           true,
			RolloutPercentage: 50,
		},
	}
}

type seedFile struct {
	Flags []*Flag `yaml:"flags"`
}

// LoadFile reads a YAML seed file. See Decode for the format.
func LoadFile(path string) ([]*Flag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads flags from YAML of the form:
//
//	flags:
//	  - name: beta_features
//	    enabled: true
//	    rollout_percentage: 25
//	    conditions:
//	      user_tier: [premium, enterprise]
//
// Unknown keys, invalid flags and duplicate names are rejected.
func Decode(r io.Reader) ([]*Flag, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed seedFile
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidSeed, err)
	}

	seen := make(map[string]struct{}, len(seed.Flags))
	for i, flag := range seed.Flags {
		if err := flag.Validate(); err != nil {
			return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("flag #%d", i), err)
		}
		if _, dup := seen[flag.Name]; dup {
			return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("duplicate flag %q", flag.Name))
		}
		seen[flag.Name] = struct{}{}
	}

	return seed.Flags, nil
}
