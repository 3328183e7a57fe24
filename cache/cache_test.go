package cache

import (
	"testing"

	"speechpool/hashkey"
)

func TestGetOrReserveCreatesOnce(t *testing.T) {
	c := New(8)
	key := hashkey.Key("k1")

	buf1, created1 := c.GetOrReserve(key)
	if !created1 {
		t.Fatal("first GetOrReserve: want created=true")
	}
	buf2, created2 := c.GetOrReserve(key)
	if created2 {
		t.Fatal("second GetOrReserve: want created=false")
	}
	if buf1 != buf2 {
		t.Fatal("second GetOrReserve returned a different buffer")
	}
}

func TestGetOrReserveEvictsCorrupted(t *testing.T) {
	c := New(8)
	key := hashkey.Key("k2")

	buf, created := c.GetOrReserve(key)
	if !created {
		t.Fatal("want created=true")
	}
	w, err := buf.MakeWriter()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(true); err != nil {
		t.Fatal(err)
	}

	fresh, created2 := c.GetOrReserve(key)
	if !created2 {
		t.Fatal("want created=true after corrupted entry is evicted")
	}
	if fresh == buf {
		t.Fatal("want a fresh buffer, not the corrupted one")
	}
}

func TestRemove(t *testing.T) {
	c := New(8)
	key := hashkey.Key("k3")
	c.GetOrReserve(key)
	if c.Len() != 1 {
		t.Fatalf("got len %d, want 1", c.Len())
	}
	c.Remove(key)
	if c.Len() != 0 {
		t.Fatalf("got len %d, want 0", c.Len())
	}
	_, created := c.GetOrReserve(key)
	if !created {
		t.Fatal("want created=true after Remove")
	}
}

func TestEvictionRespectsCapacity(t *testing.T) {
	c := New(2)
	c.GetOrReserve(hashkey.Key("a"))
	c.GetOrReserve(hashkey.Key("b"))
	c.GetOrReserve(hashkey.Key("c"))
	if c.Len() != 2 {
		t.Fatalf("got len %d, want 2 after capacity-bounded eviction", c.Len())
	}
}
