package config

import (
	"encoding/json"
)

// ToMap returns the config in document shape, for diagnostics. Only the
// active hyperparameter section is included. Feeding the result back into
// Validate yields an equal config.
func (c *ExperimentConfig) ToMap() map[string]interface{} {
	dl := c.dataLogging
	ratio := make([]interface{}, len(dl.TrainValTestRatio))
	for i, r := range dl.TrainValTestRatio {
		ratio[i] = r
	}

	out := map[string]interface{}{
		"seed":             c.seed,
		"is_search_params": c.isSearchParams,
		"data_logging_settings": map[string]interface{}{
			"data_path":            dl.DataPath,
			"train_val_test_ratio": ratio,
			"density":              dl.Density,
			"behavior_policy":      string(dl.BehaviorPolicy),
			"exposure_bias":        dl.ExposureBias,
		},
		"tables": map[string]interface{}{
			"interaction": tableToMap(c.tables.Interaction),
			"user":        tableToMap(c.tables.User),
			"video": map[string]interface{}{
				"daily":    tableToMap(c.tables.VideoDaily),
				"category": tableToMap(c.tables.VideoCategory),
			},
		},
	}
	if c.name != "" {
		out["name"] = c.name
	}

	if c.mode == SearchMode {
		models := make(map[string]interface{}, len(c.paramRanges))
		for model, ranges := range c.paramRanges {
			params := make(map[string]interface{}, len(ranges))
			for param, r := range ranges {
				params[param] = map[string]interface{}{"min": r.Min, "max": r.Max}
			}
			models[model] = params
		}
		out["model_param_range"] = models
	} else {
		models := make(map[string]interface{}, len(c.params))
		for model, values := range c.params {
			params := make(map[string]interface{}, len(values))
			for param, v := range values {
				params[param] = v
			}
			models[model] = params
		}
		out["model_params"] = models
	}

	if c.learningRates != nil {
		models := make(map[string]interface{}, len(c.learningRates))
		for model, rates := range c.learningRates {
			byEstimator := make(map[string]interface{}, len(rates))
			for estimator, lr := range rates {
				byEstimator[string(estimator)] = lr
			}
			models[model] = byEstimator
		}
		out["lr"] = models
	}
	return out
}

func tableToMap(t TableSpec) map[string]interface{} {
	features := make(map[string]interface{}, len(t.features))
	for name, ft := range t.features {
		features[name] = string(ft)
	}
	return map[string]interface{}{
		"data_path":     t.DataPath,
		"used_features": features,
	}
}

// MarshalJSON implements json.Marshaler.
func (c *ExperimentConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToMap())
}

// MarshalYAML implements yaml.Marshaler.
func (c *ExperimentConfig) MarshalYAML() (interface{}, error) {
	return c.ToMap(), nil
}
