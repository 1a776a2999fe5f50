package vecturakit

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig("mydb")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate cleanly: %v", err)
	}
}

func TestConfigValidateRejectsEmptyName(t *testing.T) {
	cfg := DefaultConfig("")
	if err := cfg.Validate(); err == nil {
		t.Error("empty name should fail validation")
	}
}

func TestConfigValidateRejectsPathSeparatorsInName(t *testing.T) {
	cfg := DefaultConfig("a/b")
	if err := cfg.Validate(); err == nil {
		t.Error("name with path separator should fail validation")
	}
}

func TestConfigValidateRejectsBadThreshold(t *testing.T) {
	cfg := DefaultConfig("db")
	bad := 1.5
	cfg.Search.Threshold = &bad
	if err := cfg.Validate(); err == nil {
		t.Error("threshold outside [0,1] should fail validation")
	}
}

func TestConfigValidateRejectsBadFusionWeight(t *testing.T) {
	cfg := DefaultConfig("db")
	cfg.Search.FusionW = 1.1
	if err := cfg.Validate(); err == nil {
		t.Error("fusionW outside [0,1] should fail validation")
	}
}

func TestConfigValidateIndexedStrategyParams(t *testing.T) {
	cfg := DefaultConfig("db")
	cfg.Strategy = IndexedStrategy(0, 10, 4)
	if err := cfg.Validate(); err == nil {
		t.Error("indexed strategy with mult <= 0 should fail validation")
	}
}

func TestConfigValidateAutomaticStrategyParams(t *testing.T) {
	cfg := DefaultConfig("db")
	cfg.Strategy = AutomaticStrategy(-1, 10, 200, 4)
	if err := cfg.Validate(); err == nil {
		t.Error("automatic strategy with negative threshold should fail validation")
	}
}

func TestStorageDirUsesConfiguredDir(t *testing.T) {
	cfg := DefaultConfig("mydb")
	cfg.Dir = "/tmp/custom"
	got := cfg.storageDir("/should/be/ignored")
	want := "/tmp/custom/mydb"
	if got != want {
		t.Errorf("storageDir = %q, want %q", got, want)
	}
}

func TestStorageDirFallsBackToDefaultRoot(t *testing.T) {
	cfg := DefaultConfig("mydb")
	got := cfg.storageDir("/home/user")
	want := "/home/user/VecturaKit/mydb"
	if got != want {
		t.Errorf("storageDir = %q, want %q", got, want)
	}
}
