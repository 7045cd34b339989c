package config

import (
	"errors"
	"os"

	log "github.com/sirupsen/logrus"
)

// Loader reads experiment configs from disk. A Loader holds no mutable state
// and may be used from several goroutines.
type Loader struct {
	opts options
}

// NewLoader creates a Loader with the given options.
func NewLoader(opts ...Option) *Loader {
	return &Loader{opts: newOptions(opts)}
}

// Load is a shorthand for NewLoader(opts...).Load(path).
func Load(path string, opts ...Option) (*ExperimentConfig, error) {
	return NewLoader(opts...).Load(path)
}

// Load reads, parses and validates the document at path.
//
// Errors are an *IOError when the file cannot be read, a *SyntaxError when it
// is not well-formed, and a *ValidationErrors listing every schema and
// invariant violation otherwise. No partially valid config is ever returned.
func (l *Loader) Load(path string) (*ExperimentConfig, error) {
	logger := l.opts.logger.WithField("path", path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &IOError{Path: path, Err: errors.New("is a directory")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	logger.WithFields(log.Fields{"bytes": len(data), "format": FormatOf(path)}).Debug("Read config file")

	tree, err := Parse(data, path)
	if err != nil {
		logger.WithFields(log.Fields{"err": err}).Debug("Config file is malformed")
		return nil, err
	}

	cfg, err := validate(tree, l.opts)
	if err != nil {
		var verrs *ValidationErrors
		if errors.As(err, &verrs) {
			logger.WithFields(log.Fields{"violations": len(verrs.Errors)}).Debug("Config failed validation")
		}
		return nil, err
	}

	if cfg.FlagOverridden() {
		logger.WithFields(log.Fields{
			"is_search_params": cfg.IsSearchParams(),
			"mode":             cfg.Mode().String(),
		}).Warn("is_search_params disagrees with the hyperparameter section present; using the section")
	}

	logger.WithFields(log.Fields{
		"name": cfg.Name(),
		"seed": cfg.Seed(),
		"mode": cfg.Mode().String(),
	}).Info("Loaded experiment config")

	return cfg, nil
}
