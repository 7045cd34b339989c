package config

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureType classifies a data column.
type FeatureType string

const (
	FeatureFloat      FeatureType = "float"
	FeatureInt        FeatureType = "int"
	FeatureLabel      FeatureType = "label"
	FeatureMultiLabel FeatureType = "multilabel"
)

// FeatureTypes lists every accepted feature type.
var FeatureTypes = []FeatureType{FeatureFloat, FeatureInt, FeatureLabel, FeatureMultiLabel}

// ParseFeatureType converts a document value into a FeatureType.
func ParseFeatureType(s string) (FeatureType, error) {
	for _, ft := range FeatureTypes {
		if string(ft) == s {
			return ft, nil
		}
	}
	return "", fmt.Errorf("unknown feature type %q", s)
}

// BehaviorPolicy is the logging policy used to simulate exposures.
type BehaviorPolicy string

const (
	BehaviorRandom BehaviorPolicy = "random"
)

// BehaviorPolicies lists every accepted behavior policy.
var BehaviorPolicies = []BehaviorPolicy{BehaviorRandom}

// ParseBehaviorPolicy converts a document value into a BehaviorPolicy.
func ParseBehaviorPolicy(s string) (BehaviorPolicy, error) {
	for _, p := range BehaviorPolicies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown behavior policy %q", s)
}

// Estimator is a loss weighting strategy used when training a model.
type Estimator string

const (
	EstimatorIdeal Estimator = "Ideal"
	EstimatorIPS   Estimator = "IPS"
	EstimatorNaive Estimator = "Naive"
)

// Estimators lists every accepted estimator.
var Estimators = []Estimator{EstimatorIdeal, EstimatorIPS, EstimatorNaive}

// ParseEstimator converts a document value into an Estimator. Names are
// case-sensitive.
func ParseEstimator(s string) (Estimator, error) {
	for _, e := range Estimators {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown estimator %q", s)
}

// ParamMode says which hyperparameter variant a config carries.
type ParamMode int

const (
	// FixedMode configs carry literal values under model_params.
	FixedMode ParamMode = iota
	// SearchMode configs carry {min, max} intervals under model_param_range.
	SearchMode
)

func (m ParamMode) String() string {
	if m == SearchMode {
		return "search"
	}
	return "fixed"
}

// ParamRange is an inclusive search interval for one hyperparameter.
type ParamRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies within the interval.
func (r ParamRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// DataLoggingSettings describes how the semi-synthetic logged data is produced.
type DataLoggingSettings struct {
	// DataPath is the interaction log to sample from
	DataPath string

	// TrainValTestRatio splits the logged data; the entries sum to 1
	TrainValTestRatio [3]float64

	// Density is the fraction of the full matrix kept, in (0, 1]
	Density float64

	// BehaviorPolicy selects how exposures are drawn
	BehaviorPolicy BehaviorPolicy

	// ExposureBias sharpens the exposure propensities; always > 0
	ExposureBias float64
}

// TableSpec points at one input table and the columns read from it.
type TableSpec struct {
	DataPath string

	features map[string]FeatureType
}

// NewTableSpec builds a TableSpec, copying features.
func NewTableSpec(dataPath string, features map[string]FeatureType) TableSpec {
	return TableSpec{DataPath: dataPath, features: copyMap(features)}
}

// UsedFeatures returns a copy of the feature name to type mapping.
func (t TableSpec) UsedFeatures() map[string]FeatureType {
	return copyMap(t.features)
}

// Feature looks up the type of a single feature.
func (t TableSpec) Feature(name string) (FeatureType, bool) {
	ft, ok := t.features[name]
	return ft, ok
}

// FeatureNames returns the feature names in sorted order.
func (t TableSpec) FeatureNames() []string {
	return sortedKeys(t.features)
}

// Table names accepted by TableSet.Table.
const (
	TableInteraction   = "interaction"
	TableUser          = "user"
	TableVideoDaily    = "video.daily"
	TableVideoCategory = "video.category"
)

// TableNames lists the tables every config must define.
var TableNames = []string{TableInteraction, TableUser, TableVideoDaily, TableVideoCategory}

// TableSet is the fixed set of input tables the pipeline reads.
type TableSet struct {
	Interaction   TableSpec
	User          TableSpec
	VideoDaily    TableSpec
	VideoCategory TableSpec
}

// Table returns a table by its dotted name (e.g. "video.daily").
func (ts TableSet) Table(name string) (TableSpec, bool) {
	switch name {
	case TableInteraction:
		return ts.Interaction, true
	case TableUser:
		return ts.User, true
	case TableVideoDaily:
		return ts.VideoDaily, true
	case TableVideoCategory:
		return ts.VideoCategory, true
	}
	return TableSpec{}, false
}

// ExperimentConfig is a fully validated experiment configuration.
//
// It is built once by Load or Validate and never changes afterwards. All
// accessors hand out copies, so a config may be shared between goroutines.
type ExperimentConfig struct {
	name           string
	seed           int64
	dataLogging    DataLoggingSettings
	tables         TableSet
	isSearchParams bool
	mode           ParamMode
	flagOverridden bool
	paramRanges    map[string]map[string]ParamRange
	params         map[string]map[string]float64
	learningRates  map[string]map[Estimator]float64
}

// Name returns the optional experiment name.
func (c *ExperimentConfig) Name() string { return c.name }

// Seed returns the random seed.
func (c *ExperimentConfig) Seed() int64 { return c.seed }

// DataLogging returns the data logging settings.
func (c *ExperimentConfig) DataLogging() DataLoggingSettings { return c.dataLogging }

// Tables returns the input tables.
func (c *ExperimentConfig) Tables() TableSet { return c.tables }

// IsSearchParams returns is_search_params as written in the document.
func (c *ExperimentConfig) IsSearchParams() bool { return c.isSearchParams }

// Mode returns the resolved hyperparameter variant.
func (c *ExperimentConfig) Mode() ParamMode { return c.mode }

// FlagOverridden reports whether the mode was taken from the fields present
// rather than from is_search_params.
func (c *ExperimentConfig) FlagOverridden() bool { return c.flagOverridden }

// Models returns the configured model names in sorted order.
func (c *ExperimentConfig) Models() []string {
	if c.mode == SearchMode {
		return sortedKeys(c.paramRanges)
	}
	return sortedKeys(c.params)
}

// ModelParamRange returns a copy of model -> param -> range. It is nil in
// fixed mode.
func (c *ExperimentConfig) ModelParamRange() map[string]map[string]ParamRange {
	if c.paramRanges == nil {
		return nil
	}
	out := make(map[string]map[string]ParamRange, len(c.paramRanges))
	for model, ranges := range c.paramRanges {
		out[model] = copyMap(ranges)
	}
	return out
}

// ParamRange returns the search interval for one hyperparameter.
func (c *ExperimentConfig) ParamRange(model, param string) (ParamRange, bool) {
	r, ok := c.paramRanges[model][param]
	return r, ok
}

// ModelParams returns a copy of model -> param -> value. It is nil in
// search mode.
func (c *ExperimentConfig) ModelParams() map[string]map[string]float64 {
	if c.params == nil {
		return nil
	}
	out := make(map[string]map[string]float64, len(c.params))
	for model, values := range c.params {
		out[model] = copyMap(values)
	}
	return out
}

// Param returns the literal value of one hyperparameter.
func (c *ExperimentConfig) Param(model, param string) (float64, bool) {
	v, ok := c.params[model][param]
	return v, ok
}

// LearningRates returns a copy of model -> estimator -> learning rate.
func (c *ExperimentConfig) LearningRates() map[string]map[Estimator]float64 {
	if c.learningRates == nil {
		return nil
	}
	out := make(map[string]map[Estimator]float64, len(c.learningRates))
	for model, rates := range c.learningRates {
		out[model] = copyMap(rates)
	}
	return out
}

// LearningRate returns the learning rate of a model trained with estimator.
func (c *ExperimentConfig) LearningRate(model string, estimator Estimator) (float64, bool) {
	lr, ok := c.learningRates[model][estimator]
	return lr, ok
}

func (c *ExperimentConfig) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "experiment %q (seed=%d, mode=%s", c.name, c.seed, c.mode)
	if c.flagOverridden {
		sb.WriteString(", flag overridden")
	}
	fmt.Fprintf(&sb, ", models=%s)", strings.Join(c.Models(), ","))
	return sb.String()
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
