package audit

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/retouch"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := openStore(t)
	before := raster.New(4, 3)
	raster.Fill(before, color.RGBA{10, 20, 30, 255})
	mask := image.NewAlpha(image.Rect(0, 0, 4, 3))
	mask.Pix[5] = 128
	task := retouch.RepairTask{
		ID:        "t1",
		Tool:      retouch.ToolSpotHeal,
		Context:   retouch.TaskContext{TargetX: 2, TargetY: 1, Radius: 3, Strength: 1},
		Region:    image.Rect(0, 0, 4, 3),
		Mask:      mask,
		Before:    before,
		Timestamp: time.UnixMicro(1700000000000000),
	}
	if err := s.Record(task); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := s.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tool != task.Tool || got.Context != task.Context || got.Region != task.Region || !got.Timestamp.Equal(task.Timestamp) {
		t.Fatalf("got %+v", got)
	}
	if !raster.Equal(got.Before, before) {
		t.Fatalf("before pixels differ")
	}
	if got.Mask.Pix[5] != 128 || got.Mask.Pix[0] != 0 {
		t.Fatalf("mask = %v", got.Mask.Pix)
	}
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestListAndCount(t *testing.T) {
	s := openStore(t)
	for i, tool := range []retouch.Tool{retouch.ToolSpotHeal, retouch.ToolPatch, retouch.ToolSpotHeal} {
		err := s.Record(retouch.RepairTask{ID: string(rune('a' + i)), Tool: tool, Timestamp: time.UnixMicro(int64(i))})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	all, err := s.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Fatalf("list = %+v", all)
	}
	two, _ := s.List(context.Background(), 2)
	if len(two) != 2 {
		t.Fatalf("limit ignored: %d", len(two))
	}
	n, _ := s.Count(context.Background(), retouch.ToolSpotHeal)
	total, _ := s.Count(context.Background(), "")
	if n != 2 || total != 3 {
		t.Fatalf("count = %d/%d", n, total)
	}
}

func TestStoreAsRecorder(t *testing.T) {
	s := openStore(t)
	e := retouch.New(retouch.WithRecorder(s))
	img := raster.New(30, 30)
	raster.Fill(img, color.RGBA{50, 60, 70, 255})
	if _, err := e.SpotHeal(img, 15, 15, 4, 1); err != nil {
		t.Fatalf("SpotHeal: %v", err)
	}
	if n, _ := s.Count(context.Background(), retouch.ToolSpotHeal); n != 1 {
		t.Fatalf("count = %d", n)
	}
}

func TestDuplicateID(t *testing.T) {
	s := openStore(t)
	task := retouch.RepairTask{ID: "dup", Tool: retouch.ToolPatch, Timestamp: time.Now()}
	if err := s.Record(task); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(task); err == nil {
		t.Fatal("duplicate id accepted")
	}
}
