package config

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// VariantPolicy decides how is_search_params and the hyperparameter
// sections are reconciled.
type VariantPolicy int

const (
	// FlagAuthoritative requires the section selected by is_search_params
	// and rejects the other one.
	FlagAuthoritative VariantPolicy = iota

	// FieldsAuthoritative takes the mode from whichever section is present
	// and accepts a flag that disagrees.
	FieldsAuthoritative
)

func (p VariantPolicy) String() string {
	if p == FieldsAuthoritative {
		return "fields"
	}
	return "flag"
}

// ParseVariantPolicy parses "flag" or "fields".
func ParseVariantPolicy(s string) (VariantPolicy, error) {
	switch s {
	case "flag", "":
		return FlagAuthoritative, nil
	case "fields":
		return FieldsAuthoritative, nil
	}
	return 0, fmt.Errorf("invalid variant policy '%s', must be one of: flag, fields", s)
}

// DefaultRatioTolerance is how far train_val_test_ratio may drift from 1.
const DefaultRatioTolerance = 1e-6

type options struct {
	logger         log.FieldLogger
	policy         VariantPolicy
	ratioTolerance float64
}

// Option configures Load, Validate and NewLoader.
type Option func(*options)

// WithLogger sets the logger used by Loader. The default discards output.
func WithLogger(logger log.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithVariantPolicy selects how search and fixed mode are resolved.
func WithVariantPolicy(policy VariantPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithRatioTolerance sets the allowed deviation of the ratio sum from 1.
func WithRatioTolerance(tolerance float64) Option {
	return func(o *options) {
		if tolerance >= 0 {
			o.ratioTolerance = tolerance
		}
	}
}

func newOptions(opts []Option) options {
	discard := log.New()
	discard.SetOutput(io.Discard)

	o := options{
		logger:         discard,
		policy:         FlagAuthoritative,
		ratioTolerance: DefaultRatioTolerance,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
