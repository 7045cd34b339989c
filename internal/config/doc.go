// Package config loads and validates experiment configuration documents for
// the recommender evaluation pipeline.
//
// A document names the logged data set, the input tables with the type of
// every feature used, and the model hyperparameters. Hyperparameters come in
// one of two mutually exclusive variants: search mode (model_param_range,
// {min, max} per hyperparameter) or fixed mode (model_params, literal values),
// selected by is_search_params.
//
// Basic Usage:
//
//	cfg, err := config.Load("conf/search.yaml")
//	if err != nil {
//	    var verrs *config.ValidationErrors
//	    if errors.As(err, &verrs) {
//	        for _, e := range verrs.Errors {
//	            log.Printf("%s", e)
//	        }
//	    }
//	    return err
//	}
//	r, _ := cfg.ParamRange("MF", "n_epochs")
//
// Error Kinds:
//
// Every error matches one or more of ErrIO, ErrSyntax, ErrSchema and
// ErrInvariant with errors.Is. Schema and invariant violations are collected
// in full rather than reported one at a time.
//
// Documents are YAML by default; files ending in .json or .toml are read as
// JSON or TOML.
package config
