package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	contents := "dbName: fromfile\ndimension: 64\nnumResults: 7\nmodelId: mock\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fc, err := loadFileConfig(path)
	if err != nil {
		t.Fatalf("loadFileConfig: %v", err)
	}
	if fc.DBName != "fromfile" || fc.Dimension != 64 || fc.NumResults != 7 || fc.ModelID != "mock" {
		t.Errorf("loadFileConfig = %+v, unexpected values", fc)
	}
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	if _, err := loadFileConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestApplyFileConfigFlagsWinOverFile(t *testing.T) {
	dbName, dimension, threshold, numResults, modelID = "explicit", 32, 0, defaultNumResults, defaultModelID
	defer func() { dbName, dimension, threshold, numResults, modelID = "", 0, 0, 0, "" }()

	applyFileConfig(fileConfig{DBName: "fromfile", Dimension: 999, NumResults: 3})

	if dbName != "explicit" {
		t.Errorf("dbName = %q, want explicit flag value preserved", dbName)
	}
	if dimension != 32 {
		t.Errorf("dimension = %d, want explicit flag value preserved", dimension)
	}
	if numResults != 3 {
		t.Errorf("numResults = %d, want file value since flag was left at default", numResults)
	}
}
