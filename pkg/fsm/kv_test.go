package fsm

import "testing"

func TestKVStoreSetGetDelete(t *testing.T) {
	kv := NewKVStore()
	payload, err := EncodeSet("a", []byte("1"))
	if err != nil {
		t.Fatalf("encode set: %v", err)
	}
	if _, err := kv.Apply(payload); err != nil {
		t.Fatalf("apply set: %v", err)
	}
	v, err := kv.Get("a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "1" {
		t.Fatalf("got %q want %q", v, "1")
	}

	delPayload, err := EncodeDelete("a")
	if err != nil {
		t.Fatalf("encode delete: %v", err)
	}
	if _, err := kv.Apply(delPayload); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if _, err := kv.Get("a"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKVStoreSnapshotRestore(t *testing.T) {
	kv := NewKVStore()
	payload, _ := EncodeSet("x", []byte("y"))
	if _, err := kv.Apply(payload); err != nil {
		t.Fatalf("apply: %v", err)
	}

	snap, err := kv.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := NewKVStore()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	v, err := restored.Get("x")
	if err != nil {
		t.Fatalf("get after restore: %v", err)
	}
	if string(v) != "y" {
		t.Fatalf("got %q want %q", v, "y")
	}
}
