package memory

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/Sternrassler/devdata-fetch/pkg/storage/core"
)

func TestStore_BasicFlow(t *testing.T) {
	ctx := context.Background()
	s := New()

	if s.Driver() != core.DriverMemory {
		t.Fatalf("Driver() = %s", s.Driver())
	}
	if err := s.Write(ctx, "KAZ/KAZ.json", []byte("{}")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if ok, _ := s.Exists(ctx, "KAZ/KAZ.json"); !ok {
		t.Error("Exists() = false after Write")
	}
	if _, err := s.Read(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}

	// Writing a file implies its parent directories.
	if created, _ := s.EnsureDir(ctx, "KAZ"); created {
		t.Error("EnsureDir(KAZ) should report existing parent")
	}
}

func TestStore_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Write(ctx, "k", []byte("abc"))

	b, _ := s.Read(ctx, "k")
	b[0] = 'X'
	again, _ := s.Read(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored data mutated: %q", again)
	}
}

func TestStore_CreateAppendOnClose(t *testing.T) {
	ctx := context.Background()
	s := New()

	w, _ := s.Create(ctx, "Data/X.tsv")
	io.WriteString(w, "row1\n")
	if ok, _ := s.Exists(ctx, "Data/X.tsv"); ok {
		t.Error("content should only be visible after Close")
	}
	w.Close()

	a, _ := s.Append(ctx, "Data/X.tsv")
	io.WriteString(a, "row2\n")
	a.Close()

	if _, err := a.Write([]byte("late")); err == nil {
		t.Error("Write after Close should fail")
	}

	b, _ := s.Read(ctx, "Data/X.tsv")
	if string(b) != "row1\nrow2\n" {
		t.Errorf("content = %q", b)
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"b/2", "a/1", "b/1"} {
		_ = s.Write(ctx, k, nil)
	}
	got, _ := s.List(ctx, "b/")
	if !reflect.DeepEqual(got, []string{"b/1", "b/2"}) {
		t.Errorf("List() = %v", got)
	}
}
