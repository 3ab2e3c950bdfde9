package mqttc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewFileStoreValidation(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewFileStore(dir, ""); err == nil {
		t.Error("empty client ID should be rejected")
	}
	if _, err := NewFileStore(dir, "../escape"); err == nil {
		t.Error("path traversal in client ID should be rejected")
	}
	store, err := NewFileStore(dir, "client-1")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if store.ClientID() != "client-1" {
		t.Errorf("ClientID() = %q, want client-1", store.ClientID())
	}
}

func TestFileStorePendingPublishes(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "client-1")
	if err != nil {
		t.Fatal(err)
	}

	pub := &PersistedPublish{
		Topic:   "sensors/temp",
		Payload: []byte("22.5"),
		QoS:     1,
		Retain:  true,
	}

	if err := store.SavePendingPublish(42, pub); err != nil {
		t.Fatalf("SavePendingPublish failed: %v", err)
	}

	loaded, err := store.LoadPendingPublishes()
	if err != nil {
		t.Fatalf("LoadPendingPublishes failed: %v", err)
	}
	got, ok := loaded[42]
	if !ok {
		t.Fatal("publish 42 not found")
	}
	if got.Topic != pub.Topic || string(got.Payload) != string(pub.Payload) ||
		got.QoS != pub.QoS || got.Retain != pub.Retain {
		t.Errorf("loaded publish mismatch: %+v", got)
	}

	if err := store.DeletePendingPublish(42); err != nil {
		t.Fatalf("DeletePendingPublish failed: %v", err)
	}
	// Deleting again is not an error
	if err := store.DeletePendingPublish(42); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}

	loaded, err = store.LoadPendingPublishes()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty store, got %d entries", len(loaded))
	}
}

func TestFileStoreSubscriptions(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "client-1")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.SaveSubscription("a/b", &SubscriptionInfo{QoS: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSubscription("c/#", &SubscriptionInfo{QoS: 2}); err != nil {
		t.Fatal(err)
	}

	subs, err := store.LoadSubscriptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subs))
	}
	if subs["a/b"].QoS != 1 || subs["c/#"].QoS != 2 {
		t.Errorf("subscription QoS mismatch: %+v", subs)
	}

	if err := store.DeleteSubscription("a/b"); err != nil {
		t.Fatal(err)
	}
	subs, err = store.LoadSubscriptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Errorf("expected 1 subscription after delete, got %d", len(subs))
	}
}

func TestFileStoreReceivedQoS2(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "client-1")
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []uint16{1, 7, 300} {
		if err := store.SaveReceivedQoS2(id); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := store.LoadReceivedQoS2()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 IDs, got %d", len(ids))
	}
	if _, ok := ids[300]; !ok {
		t.Error("ID 300 missing")
	}

	if err := store.DeleteReceivedQoS2(7); err != nil {
		t.Fatal(err)
	}
	ids, err = store.LoadReceivedQoS2()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ids[7]; ok {
		t.Error("ID 7 should be deleted")
	}

	if err := store.ClearReceivedQoS2(); err != nil {
		t.Fatal(err)
	}
	ids, err = store.LoadReceivedQoS2()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty set after clear, got %d", len(ids))
	}
}

func TestFileStoreClear(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base, "client-1")
	if err != nil {
		t.Fatal(err)
	}

	store.SavePendingPublish(1, &PersistedPublish{Topic: "t", QoS: 1})
	store.SaveSubscription("a/b", &SubscriptionInfo{QoS: 1})
	store.SaveReceivedQoS2(5)

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(base, "client-1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty store directory, found %d entries", len(entries))
	}
}

func TestFileStoreSkipsCorruptedFiles(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base, "client-1")
	if err != nil {
		t.Fatal(err)
	}

	store.SavePendingPublish(1, &PersistedPublish{Topic: "good", QoS: 1})

	bad := filepath.Join(base, "client-1", "pending_2.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadPendingPublishes()
	if err != nil {
		t.Fatalf("LoadPendingPublishes failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("expected 1 valid entry, got %d", len(loaded))
	}
	if _, ok := loaded[1]; !ok {
		t.Error("valid entry lost")
	}
}
