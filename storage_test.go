package vecturakit

import "testing"

func TestAsIndexedStorageDetectsCapability(t *testing.T) {
	fs := NewFileStorage(t.TempDir(), 4, NopLogger())
	if _, ok := asIndexedStorage(fs); ok {
		t.Error("FileStorage does not implement IndexedStorage; asIndexedStorage should report false")
	}
}

func TestAsIndexedStorageOnNonImplementor(t *testing.T) {
	var s Storage = NewFileStorage(t.TempDir(), 4, NopLogger())
	is, ok := asIndexedStorage(s)
	if ok || is != nil {
		t.Error("expected asIndexedStorage to fail for a plain FileStorage")
	}
}
