package config

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(path string, features map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"data_path": path, "used_features": features}
}

// fixedTree returns a fresh, valid fixed-mode document tree.
func fixedTree() map[string]interface{} {
	return map[string]interface{}{
		"seed":             12345,
		"is_search_params": false,
		"data_logging_settings": map[string]interface{}{
			"data_path":            "./data/big_matrix.csv",
			"train_val_test_ratio": []interface{}{0.6, 0.2, 0.2},
			"density":              0.02,
			"behavior_policy":      "random",
			"exposure_bias":        1.0,
		},
		"tables": map[string]interface{}{
			"interaction": table("./i.csv", map[string]interface{}{"user_id": "int", "watch_ratio": "float"}),
			"user":        table("./u.csv", map[string]interface{}{"user_active_degree": "label"}),
			"video": map[string]interface{}{
				"daily":    table("./d.csv", map[string]interface{}{"video_duration": "float"}),
				"category": table("./c.csv", map[string]interface{}{"feat": "multilabel"}),
			},
		},
		"model_params": map[string]interface{}{
			"MF": map[string]interface{}{"n_epochs": 10, "lr": 0.01},
		},
	}
}

// searchTree returns a fresh, valid search-mode document tree.
func searchTree() map[string]interface{} {
	tree := fixedTree()
	delete(tree, "model_params")
	tree["is_search_params"] = true
	tree["model_param_range"] = map[string]interface{}{
		"MF": map[string]interface{}{
			"n_epochs": map[string]interface{}{"min": 3, "max": 30},
		},
	}
	return tree
}

func dataLogging(tree map[string]interface{}) map[string]interface{} {
	return tree["data_logging_settings"].(map[string]interface{})
}

func validationErrors(t *testing.T, err error) *ValidationErrors {
	t.Helper()
	require.Error(t, err)
	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected *ValidationErrors, got %T", err)
	return verrs
}

func TestValidateValidTrees(t *testing.T) {
	cfg, err := Validate(fixedTree())
	require.NoError(t, err)
	assert.Equal(t, FixedMode, cfg.Mode())
	assert.Equal(t, "", cfg.Name())

	cfg, err = Validate(searchTree())
	require.NoError(t, err)
	assert.Equal(t, SearchMode, cfg.Mode())
	assert.Equal(t, []string{"MF"}, cfg.Models())
}

func TestValidateInvariants(t *testing.T) {
	tests := []struct {
		name      string
		tree      func() map[string]interface{}
		wantField string
		wantRule  string
	}{
		{
			name: "ratio does not sum to one",
			tree: func() map[string]interface{} {
				tree := fixedTree()
				dataLogging(tree)["train_val_test_ratio"] = []interface{}{0.5, 0.3, 0.3}
				return tree
			},
			wantField: "data_logging_settings.train_val_test_ratio",
			wantRule:  InvariantRatio,
		},
		{
			name: "ratio with two entries",
			tree: func() map[string]interface{} {
				tree := fixedTree()
				dataLogging(tree)["train_val_test_ratio"] = []interface{}{0.5, 0.5}
				return tree
			},
			wantField: "data_logging_settings.train_val_test_ratio",
			wantRule:  InvariantRatio,
		},
		{
			name: "negative ratio entry",
			tree: func() map[string]interface{} {
				tree := fixedTree()
				dataLogging(tree)["train_val_test_ratio"] = []interface{}{1.2, -0.2, 0.0}
				return tree
			},
			wantField: "data_logging_settings.train_val_test_ratio[1]",
			wantRule:  InvariantRatio,
		},
		{
			name: "range min above max",
			tree: func() map[string]interface{} {
				tree := searchTree()
				tree["model_param_range"] = map[string]interface{}{
					"MF": map[string]interface{}{
						"n_epochs": map[string]interface{}{"min": 30, "max": 3},
					},
				}
				return tree
			},
			wantField: "model_param_range.MF.n_epochs",
			wantRule:  InvariantRangeOrder,
		},
		{
			name: "zero density",
			tree: func() map[string]interface{} {
				tree := fixedTree()
				dataLogging(tree)["density"] = 0
				return tree
			},
			wantField: "data_logging_settings.density",
			wantRule:  InvariantDensity,
		},
		{
			name: "density above one",
			tree: func() map[string]interface{} {
				tree := fixedTree()
				dataLogging(tree)["density"] = 1.5
				return tree
			},
			wantField: "data_logging_settings.density",
			wantRule:  InvariantDensity,
		},
		{
			name: "zero exposure bias",
			tree: func() map[string]interface{} {
				tree := fixedTree()
				dataLogging(tree)["exposure_bias"] = 0.0
				return tree
			},
			wantField: "data_logging_settings.exposure_bias",
			wantRule:  InvariantExposureBias,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Validate(tt.tree())
			assert.Nil(t, cfg)
			verrs := validationErrors(t, err)

			assert.True(t, errors.Is(err, ErrInvariant))
			assert.False(t, errors.Is(err, ErrSchema))

			require.NotEmpty(t, verrs.Errors)
			var found bool
			for _, e := range verrs.Errors {
				if e.Field == tt.wantField && e.Invariant == tt.wantRule {
					found = true
				}
			}
			assert.True(t, found, "no %s violation on %s in:\n%v", tt.wantRule, tt.wantField, err)
		})
	}
}

func TestValidateDensityBoundary(t *testing.T) {
	tree := fixedTree()
	dataLogging(tree)["density"] = 1
	cfg, err := Validate(tree)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.DataLogging().Density)
}

func TestValidateRatioTolerance(t *testing.T) {
	tree := fixedTree()
	dataLogging(tree)["train_val_test_ratio"] = []interface{}{0.6, 0.2, 0.2001}

	_, err := Validate(tree)
	assert.True(t, errors.Is(err, ErrInvariant))

	_, err = Validate(tree, WithRatioTolerance(1e-3))
	assert.NoError(t, err)
}

func TestValidateSchemaErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(tree map[string]interface{})
		wantField string
	}{
		{
			name: "unknown feature type",
			mutate: func(tree map[string]interface{}) {
				user := tree["tables"].(map[string]interface{})["user"].(map[string]interface{})
				user["used_features"] = map[string]interface{}{"is_author": "boolean"}
			},
			wantField: "tables.user.used_features.is_author",
		},
		{
			name: "unknown behavior policy",
			mutate: func(tree map[string]interface{}) {
				dataLogging(tree)["behavior_policy"] = "popularity"
			},
			wantField: "data_logging_settings.behavior_policy",
		},
		{
			name: "missing seed",
			mutate: func(tree map[string]interface{}) {
				delete(tree, "seed")
			},
			wantField: "seed",
		},
		{
			name: "missing video category table",
			mutate: func(tree map[string]interface{}) {
				video := tree["tables"].(map[string]interface{})["video"].(map[string]interface{})
				delete(video, "category")
			},
			wantField: "tables.video.category",
		},
		{
			name: "seed is not an integer",
			mutate: func(tree map[string]interface{}) {
				tree["seed"] = 1.5
			},
			wantField: "seed",
		},
		{
			name: "flag is not a boolean",
			mutate: func(tree map[string]interface{}) {
				tree["is_search_params"] = "no"
			},
			wantField: "is_search_params",
		},
		{
			name: "unknown top-level key",
			mutate: func(tree map[string]interface{}) {
				tree["optimizer"] = "adam"
			},
			wantField: "optimizer",
		},
		{
			name: "empty data path",
			mutate: func(tree map[string]interface{}) {
				dataLogging(tree)["data_path"] = ""
			},
			wantField: "data_logging_settings.data_path",
		},
		{
			name: "non-numeric literal param",
			mutate: func(tree map[string]interface{}) {
				tree["model_params"] = map[string]interface{}{
					"MF": map[string]interface{}{"n_epochs": "ten"},
				}
			},
			wantField: "model_params.MF.n_epochs",
		},
		{
			name: "non-positive learning rate",
			mutate: func(tree map[string]interface{}) {
				tree["lr"] = map[string]interface{}{
					"MF": map[string]interface{}{"IPS": 0},
				}
			},
			wantField: "lr.MF.IPS",
		},
		{
			name: "non-finite density",
			mutate: func(tree map[string]interface{}) {
				dataLogging(tree)["density"] = math.NaN()
			},
			wantField: "data_logging_settings.density",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := fixedTree()
			tt.mutate(tree)

			cfg, err := Validate(tree)
			assert.Nil(t, cfg)
			verrs := validationErrors(t, err)

			assert.True(t, errors.Is(err, ErrSchema))
			assert.False(t, errors.Is(err, ErrInvariant), "unexpected invariant error:\n%v", err)

			fields := []string{}
			for _, e := range verrs.Errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidateUnknownEstimator(t *testing.T) {
	tree := fixedTree()
	tree["lr"] = map[string]interface{}{
		"MF": map[string]interface{}{"DR": 0.01},
	}

	_, err := Validate(tree)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.Contains(t, err.Error(), "lr.MF")
}

func TestValidateSkipsInvariantsOnRejectedValues(t *testing.T) {
	tree := fixedTree()
	dataLogging(tree)["train_val_test_ratio"] = []interface{}{"a", 0.2, 0.2}

	_, err := Validate(tree)
	verrs := validationErrors(t, err)
	assert.Empty(t, verrs.ByKind(KindInvariant))
	assert.NotEmpty(t, verrs.ByKind(KindSchema))
}

func TestValidateVariants(t *testing.T) {
	bothPresent := func() map[string]interface{} {
		tree := searchTree()
		tree["model_params"] = fixedTree()["model_params"]
		return tree
	}
	neitherPresent := func() map[string]interface{} {
		tree := fixedTree()
		delete(tree, "model_params")
		return tree
	}
	searchFlagWithParams := func() map[string]interface{} {
		tree := fixedTree()
		tree["is_search_params"] = true
		return tree
	}
	fixedFlagWithRanges := func() map[string]interface{} {
		tree := searchTree()
		tree["is_search_params"] = false
		return tree
	}

	tests := []struct {
		name           string
		tree           func() map[string]interface{}
		policy         VariantPolicy
		wantErr        bool
		wantMode       ParamMode
		wantOverridden bool
	}{
		{name: "flag: search flag with model_params only", tree: searchFlagWithParams, policy: FlagAuthoritative, wantErr: true},
		{name: "flag: fixed flag with ranges only", tree: fixedFlagWithRanges, policy: FlagAuthoritative, wantErr: true},
		{name: "flag: both present", tree: bothPresent, policy: FlagAuthoritative, wantErr: true},
		{name: "flag: neither present", tree: neitherPresent, policy: FlagAuthoritative, wantErr: true},
		{name: "fields: both present", tree: bothPresent, policy: FieldsAuthoritative, wantErr: true},
		{name: "fields: neither present", tree: neitherPresent, policy: FieldsAuthoritative, wantErr: true},
		{name: "fields: search flag with model_params only", tree: searchFlagWithParams, policy: FieldsAuthoritative, wantMode: FixedMode, wantOverridden: true},
		{name: "fields: fixed flag with ranges only", tree: fixedFlagWithRanges, policy: FieldsAuthoritative, wantMode: SearchMode, wantOverridden: true},
		{name: "fields: consistent search", tree: searchTree, policy: FieldsAuthoritative, wantMode: SearchMode},
		{name: "fields: consistent fixed", tree: fixedTree, policy: FieldsAuthoritative, wantMode: FixedMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Validate(tt.tree(), WithVariantPolicy(tt.policy))
			if tt.wantErr {
				verrs := validationErrors(t, err)
				assert.True(t, errors.Is(err, ErrInvariant))
				for _, e := range verrs.ByKind(KindInvariant) {
					assert.Equal(t, InvariantSearchVariant, e.Invariant)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, cfg.Mode())
			assert.Equal(t, tt.wantOverridden, cfg.FlagOverridden())
		})
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	tree := searchTree()
	delete(tree, "seed")
	tree["extra"] = true
	dl := dataLogging(tree)
	dl["train_val_test_ratio"] = []interface{}{0.5, 0.3, 0.3}
	dl["exposure_bias"] = -1
	tree["model_param_range"] = map[string]interface{}{
		"MF": map[string]interface{}{
			"n_epochs":  map[string]interface{}{"min": 30, "max": 3},
			"n_factors": map[string]interface{}{"min": 300, "max": 100},
		},
	}

	_, err := Validate(tree)
	verrs := validationErrors(t, err)

	assert.Len(t, verrs.ByKind(KindSchema), 2)
	assert.Len(t, verrs.ByKind(KindInvariant), 4)
	assert.True(t, strings.HasPrefix(err.Error(), "6 validation errors:"))

	// Schema errors come first, each group ordered by field.
	assert.Equal(t, KindSchema, verrs.Errors[0].Kind)
	assert.Equal(t, "extra", verrs.Errors[0].Field)
	assert.Equal(t, "seed", verrs.Errors[1].Field)
	assert.Equal(t, "data_logging_settings.exposure_bias", verrs.Errors[2].Field)

	kind, ok := Kind(err)
	assert.True(t, ok)
	assert.Equal(t, KindSchema, kind)
}

func TestValidateSeedOutOfRangeReportedWithOtherErrors(t *testing.T) {
	tree := fixedTree()
	tree["seed"] = uint64(math.MaxUint64)
	tree["optimizer"] = "adam"

	_, err := Validate(tree)
	verrs := validationErrors(t, err)

	schemaErrs := verrs.ByKind(KindSchema)
	require.Len(t, schemaErrs, 2, "got:\n%v", err)
	assert.Equal(t, "optimizer", schemaErrs[0].Field)
	assert.Equal(t, "seed", schemaErrs[1].Field)
	assert.Contains(t, schemaErrs[1].Message, "9223372036854775807")
}

func TestValidateSeedBounds(t *testing.T) {
	tree := fixedTree()
	tree["seed"] = int64(math.MinInt64)
	cfg, err := Validate(tree)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), cfg.Seed())

	tree["seed"] = int64(math.MaxInt64)
	cfg, err = Validate(tree)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), cfg.Seed())
}

func TestAddDecodeError(t *testing.T) {
	var doc document
	decodeErr := json.Unmarshal([]byte(`{"data_logging_settings": {"density": 1e400}}`), &doc)
	require.Error(t, decodeErr)

	errs := &ValidationErrors{}
	errs.Add("optimizer", "unknown field")
	addDecodeError(errs, decodeErr)
	require.Len(t, errs.Errors, 2)
	assert.Equal(t, "data_logging_settings.density", errs.Errors[1].Field)
	assert.Equal(t, KindSchema, errs.Errors[1].Kind)

	// Already rejected by the schema.
	errs = &ValidationErrors{}
	errs.Add("data_logging_settings.density", "expected number")
	addDecodeError(errs, decodeErr)
	assert.Len(t, errs.Errors, 1)

	errs = &ValidationErrors{}
	addDecodeError(errs, errors.New("boom"))
	require.Len(t, errs.Errors, 1)
	assert.Equal(t, "", errs.Errors[0].Field)
	assert.Contains(t, errs.Errors[0].Message, "cannot decode document")
}

func TestValidateNumericKeysAreNotIndexes(t *testing.T) {
	tree := fixedTree()
	user := tree["tables"].(map[string]interface{})["user"].(map[string]interface{})
	user["used_features"] = map[string]interface{}{"2024": "boolean"}
	dataLogging(tree)["train_val_test_ratio"] = []interface{}{0.6, "x", 0.2}

	_, err := Validate(tree)
	verrs := validationErrors(t, err)

	fields := []string{}
	for _, e := range verrs.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "tables.user.used_features.2024")
	assert.Contains(t, fields, "data_logging_settings.train_val_test_ratio[1]")
}

func TestValidateNumericParamNameSkipsRangeCheck(t *testing.T) {
	tree := searchTree()
	tree["model_param_range"] = map[string]interface{}{
		"MF": map[string]interface{}{
			"2024": map[string]interface{}{"min": "x", "max": 3},
		},
	}

	_, err := Validate(tree)
	verrs := validationErrors(t, err)
	assert.Empty(t, verrs.ByKind(KindInvariant))

	schemaErrs := verrs.ByKind(KindSchema)
	require.Len(t, schemaErrs, 1, "got:\n%v", err)
	assert.Equal(t, "model_param_range.MF.2024.min", schemaErrs[0].Field)
}

func TestFieldPath(t *testing.T) {
	tree := map[string]interface{}{
		"list": []interface{}{map[string]interface{}{"7": "x"}},
		"byID": map[string]interface{}{"7": "x"},
	}

	assert.Equal(t, "", fieldPath(tree, nil))
	assert.Equal(t, "list[0].7", fieldPath(tree, []string{"list", "0", "7"}))
	assert.Equal(t, "byID.7", fieldPath(tree, []string{"byID", "7"}))
	assert.Equal(t, "missing.3", fieldPath(tree, []string{"missing", "3"}))
}

func TestBuildRejectsUnknownEnumValues(t *testing.T) {
	data, err := json.Marshal(normalize(fixedTree()))
	require.NoError(t, err)

	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	doc.DataLogging.BehaviorPolicy = "popularity"
	doc.Tables.User.UsedFeatures["is_author"] = "boolean"
	doc.LearningRates = map[string]map[string]float64{"MF": {"IPS": 0.01, "DR": 0.02}}

	errs := &ValidationErrors{}
	cfg := build(&doc, FixedMode, false, errs)
	require.NotNil(t, cfg)

	fields := []string{}
	for _, e := range errs.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"data_logging_settings.behavior_policy",
		"tables.user.used_features.is_author",
		"lr.MF.DR",
	}, fields)

	rate, ok := cfg.LearningRate("MF", EstimatorIPS)
	assert.True(t, ok)
	assert.Equal(t, 0.01, rate)
}

func TestValidateNonObjectRoot(t *testing.T) {
	for _, raw := range []interface{}{nil, "text", []interface{}{1, 2}} {
		cfg, err := Validate(raw, WithVariantPolicy(FieldsAuthoritative))
		assert.Nil(t, cfg)
		verrs := validationErrors(t, err)
		assert.Empty(t, verrs.ByKind(KindInvariant))
		assert.NotEmpty(t, verrs.ByKind(KindSchema))
	}
}

func TestValidateAcceptsYAMLStyleMaps(t *testing.T) {
	tree := fixedTree()
	tree["model_params"] = map[interface{}]interface{}{
		"MF": map[interface{}]interface{}{"n_epochs": 10},
	}

	cfg, err := Validate(tree)
	require.NoError(t, err)
	v, ok := cfg.Param("MF", "n_epochs")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
}

func TestToMapRoundTrip(t *testing.T) {
	for _, path := range []string{"testdata/search.yaml", "testdata/fixed.yaml"} {
		t.Run(path, func(t *testing.T) {
			cfg, err := Load(path)
			require.NoError(t, err)

			again, err := Validate(cfg.ToMap())
			require.NoError(t, err)
			if diff := cmp.Diff(cfg.ToMap(), again.ToMap()); diff != "" {
				t.Errorf("round trip mismatch (-first +second):\n%s", diff)
			}
			assert.Equal(t, cfg.String(), again.String())
		})
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	cfg, err := Load("testdata/fixed.yaml")
	require.NoError(t, err)

	params := cfg.ModelParams()
	params["MF"]["n_epochs"] = 999
	delete(params, "FM")

	rates := cfg.LearningRates()
	rates["MF"][EstimatorIPS] = 1

	features := cfg.Tables().Interaction.UsedFeatures()
	features["user_id"] = FeatureFloat

	v, _ := cfg.Param("MF", "n_epochs")
	assert.Equal(t, 10.0, v)
	_, ok := cfg.Param("FM", "n_epochs")
	assert.True(t, ok)
	lr, _ := cfg.LearningRate("MF", EstimatorIPS)
	assert.Equal(t, 0.01, lr)
	ft, _ := cfg.Tables().Interaction.Feature("user_id")
	assert.Equal(t, FeatureInt, ft)
}
