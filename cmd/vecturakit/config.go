package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional on-disk override file for flags that are
// awkward to type repeatedly on the command line. Grounded on the pack's
// uniform cobra+yaml.v3 CLI config idiom (confirmed across sqvect, evoclaw,
// conexus, Mimir) - every field is optional and a flag with an explicit
// non-default value always wins over the file.
type fileConfig struct {
	DBName     string   `yaml:"dbName"`
	Dimension  int      `yaml:"dimension"`
	Threshold  *float64 `yaml:"threshold"`
	NumResults int      `yaml:"numResults"`
	ModelID    string   `yaml:"modelId"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

// applyFileConfig fills in from fc each field still at its flag default
// (zero for dimension and threshold), so a flag set to a non-default value
// takes precedence over the file.
func applyFileConfig(fc fileConfig) {
	if dbName == "" || dbName == defaultDBName {
		if fc.DBName != "" {
			dbName = fc.DBName
		}
	}
	if dimension == 0 && fc.Dimension > 0 {
		dimension = fc.Dimension
	}
	if threshold == 0 && fc.Threshold != nil {
		threshold = *fc.Threshold
	}
	if numResults == defaultNumResults && fc.NumResults > 0 {
		numResults = fc.NumResults
	}
	if modelID == defaultModelID && fc.ModelID != "" {
		modelID = fc.ModelID
	}
}
