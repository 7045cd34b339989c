package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wesleyorama2/expcfg/pkg/jsonschema"
)

//go:embed experiment.schema.json
var experimentSchemaJSON string

var (
	initOnce       sync.Once
	documentSchema *jsonschema.Schema
	fieldValidator *validator.Validate
)

func checkers() (*jsonschema.Schema, *validator.Validate) {
	initOnce.Do(func() {
		documentSchema = jsonschema.MustCompile("experiment.schema.json", experimentSchemaJSON)
		fieldValidator = validator.New()
	})
	return documentSchema, fieldValidator
}

// Range rules applied with the field validator.
const (
	densityRule      = "gt=0,lte=1"
	exposureBiasRule = "gt=0"
)

// document mirrors the file layout. Pointers distinguish absent from zero.
type document struct {
	Name            *string                          `json:"name"`
	Seed            *int64                           `json:"seed"`
	IsSearchParams  *bool                            `json:"is_search_params"`
	DataLogging     *dataLoggingDocument             `json:"data_logging_settings"`
	Tables          *tablesDocument                  `json:"tables"`
	ModelParamRange map[string]map[string]ParamRange `json:"model_param_range"`
	ModelParams     map[string]map[string]float64    `json:"model_params"`
	LearningRates   map[string]map[string]float64    `json:"lr"`
}

type dataLoggingDocument struct {
	DataPath          string    `json:"data_path"`
	TrainValTestRatio []float64 `json:"train_val_test_ratio"`
	Density           *float64  `json:"density"`
	BehaviorPolicy    string    `json:"behavior_policy"`
	ExposureBias      *float64  `json:"exposure_bias"`
}

type tablesDocument struct {
	Interaction tableDocument `json:"interaction"`
	User        tableDocument `json:"user"`
	Video       struct {
		Daily    tableDocument `json:"daily"`
		Category tableDocument `json:"category"`
	} `json:"video"`
}

type tableDocument struct {
	DataPath     string            `json:"data_path"`
	UsedFeatures map[string]string `json:"used_features"`
}

// Validate checks a generic key-value tree, as produced by Parse, and builds
// an ExperimentConfig from it.
//
// Validate performs no I/O. It does not stop at the first problem: on failure
// it returns a *ValidationErrors holding every schema and invariant violation.
func Validate(raw interface{}, opts ...Option) (*ExperimentConfig, error) {
	return validate(raw, newOptions(opts))
}

func validate(raw interface{}, o options) (*ExperimentConfig, error) {
	errs := &ValidationErrors{}
	tree := normalize(raw)

	schema, _ := checkers()
	for _, v := range schema.Validate(tree) {
		addSchemaViolation(errs, tree, v)
	}

	var doc document
	if data, err := json.Marshal(tree); err != nil {
		errs.Add("", fmt.Sprintf("cannot encode document: %v", err))
	} else if err := json.Unmarshal(data, &doc); err != nil {
		addDecodeError(errs, err)
	}

	checkDataLogging(doc.DataLogging, o, errs)
	checkParamRanges(doc.ModelParamRange, errs)

	root, isObject := tree.(map[string]interface{})
	var mode ParamMode
	var overridden bool
	if isObject {
		mode, overridden = resolveMode(root, doc.IsSearchParams, o.policy, errs)
	}

	if !errs.HasErrors() {
		cfg := build(&doc, mode, overridden, errs)
		if !errs.HasErrors() {
			return cfg, nil
		}
	}
	sortErrors(errs)
	return nil, errs
}

// normalize converts the tree into the shapes encoding/json produces so
// that the schema validator and the typed decoder see the same values.
// Numbers become json.Number; non-finite floats become strings and fail the
// schema's number checks.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, string, json.Number:
		return t
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return json.Number(strconv.Itoa(t))
	case int64:
		return json.Number(strconv.FormatInt(t, 10))
	case uint64:
		return json.Number(strconv.FormatUint(t, 10))
	case float32:
		return normalizeFloat(float64(t))
	case float64:
		return normalizeFloat(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func normalizeFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}

var quotedName = regexp.MustCompile(`'((?:\\'|[^'])*)'`)

// addSchemaViolation turns a schema failure into one error per offending
// field, splitting "missing properties" and "not allowed" lists.
func addSchemaViolation(errs *ValidationErrors, tree interface{}, v jsonschema.Violation) {
	tokens := jsonschema.SplitPointer(v.InstanceLocation)
	field := fieldPath(tree, tokens)

	var perName string
	switch v.Keyword {
	case "required":
		perName = "required field is missing"
	case "additionalProperties":
		perName = "unknown field"
	}

	if perName != "" {
		names := quotedName.FindAllStringSubmatch(v.Message, -1)
		for _, m := range names {
			name := strings.ReplaceAll(m[1], `\'`, `'`)
			errs.Add(fieldPath(tree, append(tokens[:len(tokens):len(tokens)], name)), perName)
		}
		if len(names) > 0 {
			return
		}
	}
	errs.Add(field, v.Message)
}

// fieldPath renders a pointer into tree as a dotted path. Tokens that index
// an array are written as [i]; every other token is a key.
func fieldPath(tree interface{}, tokens []string) string {
	var sb strings.Builder
	node := tree
	for _, tok := range tokens {
		switch n := node.(type) {
		case []interface{}:
			fmt.Fprintf(&sb, "[%s]", tok)
			node = nil
			if i, err := strconv.Atoi(tok); err == nil && i >= 0 && i < len(n) {
				node = n[i]
			}
			continue
		case map[string]interface{}:
			node = n[tok]
		default:
			node = nil
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(tok)
	}
	return sb.String()
}

// addDecodeError records a value the schema accepted but the typed document
// cannot hold. Fields that already carry a schema error are not reported
// twice.
func addDecodeError(errs *ValidationErrors, err error) {
	var field, message string
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field = typeErr.Field
		message = fmt.Sprintf("%s does not fit in %s", typeErr.Value, typeErr.Type)
	} else {
		message = fmt.Sprintf("cannot decode document: %v", err)
	}

	if hasSchemaErrorAt(errs, field) {
		return
	}
	errs.Add(field, message)
}

// hasSchemaErrorAt reports whether a schema error was already recorded at or
// below field. Invariants are not checked on values the schema rejected.
func hasSchemaErrorAt(errs *ValidationErrors, field string) bool {
	for _, err := range errs.ByKind(KindSchema) {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			return true
		}
	}
	return false
}

func checkDataLogging(dl *dataLoggingDocument, o options, errs *ValidationErrors) {
	if dl == nil {
		return
	}
	const prefix = "data_logging_settings"

	ratioField := prefix + ".train_val_test_ratio"
	if dl.TrainValTestRatio != nil && !hasSchemaErrorAt(errs, ratioField) {
		checkRatio(ratioField, dl.TrainValTestRatio, o.ratioTolerance, errs)
	}

	_, fv := checkers()
	densityField := prefix + ".density"
	if dl.Density != nil && !hasSchemaErrorAt(errs, densityField) {
		if err := fv.Var(*dl.Density, densityRule); err != nil {
			errs.AddInvariant(densityField, InvariantDensity,
				fmt.Sprintf("density must be in (0, 1], got %g%s", *dl.Density, failedRule(err)))
		}
	}

	biasField := prefix + ".exposure_bias"
	if dl.ExposureBias != nil && !hasSchemaErrorAt(errs, biasField) {
		if err := fv.Var(*dl.ExposureBias, exposureBiasRule); err != nil {
			errs.AddInvariant(biasField, InvariantExposureBias,
				fmt.Sprintf("exposure_bias must be greater than 0, got %g%s", *dl.ExposureBias, failedRule(err)))
		}
	}
}

func failedRule(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if param := verrs[0].Param(); param != "" {
			return fmt.Sprintf(" (%s=%s)", verrs[0].Tag(), param)
		}
		return fmt.Sprintf(" (%s)", verrs[0].Tag())
	}
	return ""
}

func checkRatio(field string, ratio []float64, tolerance float64, errs *ValidationErrors) {
	if len(ratio) != 3 {
		errs.AddInvariant(field, InvariantRatio,
			fmt.Sprintf("must have exactly 3 entries (train, validation, test), got %d", len(ratio)))
		return
	}

	var sum float64
	for i, r := range ratio {
		if r < 0 {
			errs.AddInvariant(fmt.Sprintf("%s[%d]", field, i), InvariantRatio,
				fmt.Sprintf("entries cannot be negative, got %g", r))
		}
		sum += r
	}
	if math.Abs(sum-1) > tolerance {
		errs.AddInvariant(field, InvariantRatio, fmt.Sprintf("entries must sum to 1, got %g", sum))
	}
}

func checkParamRanges(ranges map[string]map[string]ParamRange, errs *ValidationErrors) {
	for _, model := range sortedKeys(ranges) {
		for _, param := range sortedKeys(ranges[model]) {
			field := fmt.Sprintf("model_param_range.%s.%s", model, param)
			if hasSchemaErrorAt(errs, field) {
				continue
			}
			r := ranges[model][param]
			if r.Min > r.Max {
				errs.AddInvariant(field, InvariantRangeOrder,
					fmt.Sprintf("min (%g) must be less than or equal to max (%g)", r.Min, r.Max))
			}
		}
	}
}

// resolveMode applies the variant policy. Presence is taken from the raw
// keys so that an explicit null still counts as written.
func resolveMode(root map[string]interface{}, flag *bool, policy VariantPolicy, errs *ValidationErrors) (ParamMode, bool) {
	_, hasRanges := root["model_param_range"]
	_, hasParams := root["model_params"]

	if policy == FieldsAuthoritative {
		switch {
		case hasRanges && hasParams:
			errs.AddInvariant("", InvariantSearchVariant,
				"model_param_range and model_params are mutually exclusive")
		case !hasRanges && !hasParams:
			errs.AddInvariant("", InvariantSearchVariant,
				"one of model_param_range or model_params is required")
		}
		mode := FixedMode
		if hasRanges {
			mode = SearchMode
		}
		return mode, flag != nil && *flag != (mode == SearchMode)
	}

	if flag == nil {
		return FixedMode, false
	}

	if *flag {
		if !hasRanges {
			errs.AddInvariant("model_param_range", InvariantSearchVariant,
				"is_search_params is true but model_param_range is missing")
		}
		if hasParams {
			errs.AddInvariant("model_params", InvariantSearchVariant,
				"is_search_params is true but model_params is present; search and fixed settings are mutually exclusive")
		}
		return SearchMode, false
	}

	if !hasParams {
		errs.AddInvariant("model_params", InvariantSearchVariant,
			"is_search_params is false but model_params is missing")
	}
	if hasRanges {
		errs.AddInvariant("model_param_range", InvariantSearchVariant,
			"is_search_params is false but model_param_range is present; search and fixed settings are mutually exclusive")
	}
	return FixedMode, false
}

func sortErrors(errs *ValidationErrors) {
	sort.SliceStable(errs.Errors, func(i, j int) bool {
		a, b := errs.Errors[i], errs.Errors[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.Message < b.Message
	})
}

// build assumes doc passed validation. Enum values the schema let through
// are still parsed, and any that fail are recorded in errs.
func build(doc *document, mode ParamMode, overridden bool, errs *ValidationErrors) *ExperimentConfig {
	dl := doc.DataLogging
	policy, err := ParseBehaviorPolicy(dl.BehaviorPolicy)
	if err != nil {
		errs.Add("data_logging_settings.behavior_policy", err.Error())
	}

	cfg := &ExperimentConfig{
		seed:           *doc.Seed,
		isSearchParams: *doc.IsSearchParams,
		mode:           mode,
		flagOverridden: overridden,
		dataLogging: DataLoggingSettings{
			DataPath:       dl.DataPath,
			Density:        *dl.Density,
			BehaviorPolicy: policy,
			ExposureBias:   *dl.ExposureBias,
		},
		tables: TableSet{
			Interaction:   buildTable("tables."+TableInteraction, doc.Tables.Interaction, errs),
			User:          buildTable("tables."+TableUser, doc.Tables.User, errs),
			VideoDaily:    buildTable("tables."+TableVideoDaily, doc.Tables.Video.Daily, errs),
			VideoCategory: buildTable("tables."+TableVideoCategory, doc.Tables.Video.Category, errs),
		},
	}
	if doc.Name != nil {
		cfg.name = *doc.Name
	}
	copy(cfg.dataLogging.TrainValTestRatio[:], dl.TrainValTestRatio)

	if mode == SearchMode {
		cfg.paramRanges = make(map[string]map[string]ParamRange, len(doc.ModelParamRange))
		for model, ranges := range doc.ModelParamRange {
			cfg.paramRanges[model] = copyMap(ranges)
		}
	} else {
		cfg.params = make(map[string]map[string]float64, len(doc.ModelParams))
		for model, values := range doc.ModelParams {
			cfg.params[model] = copyMap(values)
		}
	}

	if doc.LearningRates != nil {
		cfg.learningRates = make(map[string]map[Estimator]float64, len(doc.LearningRates))
		for model, rates := range doc.LearningRates {
			byEstimator := make(map[Estimator]float64, len(rates))
			for name, lr := range rates {
				estimator, err := ParseEstimator(name)
				if err != nil {
					errs.Add(fmt.Sprintf("lr.%s.%s", model, name), err.Error())
					continue
				}
				byEstimator[estimator] = lr
			}
			cfg.learningRates[model] = byEstimator
		}
	}
	return cfg
}

func buildTable(field string, td tableDocument, errs *ValidationErrors) TableSpec {
	features := make(map[string]FeatureType, len(td.UsedFeatures))
	for name, kind := range td.UsedFeatures {
		ft, err := ParseFeatureType(kind)
		if err != nil {
			errs.Add(fmt.Sprintf("%s.used_features.%s", field, name), err.Error())
			continue
		}
		features[name] = ft
	}
	return TableSpec{DataPath: td.DataPath, features: features}
}
