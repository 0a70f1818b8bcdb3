package inference

import (
	"errors"
	"image"
	"strings"
	"testing"
)

func TestSelectFallsBack(t *testing.T) {
	var tried []string
	accel := Factory{Name: "accelerated", New: func() (IService, error) {
		tried = append(tried, "accelerated")
		return nil, errors.New("cuda unavailable")
	}}
	cpu := Factory{Name: "cpu", New: func() (IService, error) {
		tried = append(tried, "cpu")
		return NewFake(320), nil
	}}

	svc, err := Select(accel, cpu)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if svc.Name() != "fake" {
		t.Errorf("selected %q, want fake", svc.Name())
	}
	if len(tried) != 2 || tried[0] != "accelerated" || tried[1] != "cpu" {
		t.Errorf("tried order: got %v", tried)
	}
}

func TestSelectFirstWins(t *testing.T) {
	calls := 0
	second := Factory{Name: "cpu", New: func() (IService, error) {
		calls++
		return NewFake(320), nil
	}}

	if _, err := Select(Factory{Name: "accelerated", New: func() (IService, error) { return NewFake(640), nil }}, second); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("cpu backend should not load when the accelerated one works")
	}
}

func TestSelectAllFail(t *testing.T) {
	cause := errors.New("model file missing")
	_, err := Select(
		Factory{Name: "accelerated", New: func() (IService, error) { return nil, errors.New("cuda unavailable") }},
		Factory{Name: "cpu", New: func() (IService, error) { return nil, cause }},
	)
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("error should wrap ErrNoBackend, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error should wrap the last cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "model file missing") {
		t.Errorf("error should name the last cause, got %q", err.Error())
	}

	if _, err := Select(); !errors.Is(err, ErrNoBackend) {
		t.Errorf("empty Select: got %v", err)
	}
}

func TestFakeDeterministic(t *testing.T) {
	a := NewFake(320)
	b := NewFake(320)
	img := image.NewRGBA(image.Rect(0, 0, 320, 320))

	if a.InputSize() != image.Pt(320, 320) {
		t.Errorf("InputSize: got %v", a.InputSize())
	}

	for i := 0; i < 10; i++ {
		da, _ := a.Detect(img)
		db, _ := b.Detect(img)
		if len(da) != 3 || len(db) != 3 {
			t.Fatalf("detections: got %d and %d, want 3", len(da), len(db))
		}
		for j := range da {
			if da[j] != db[j] {
				t.Fatalf("call %d detection %d differs: %+v vs %+v", i, j, da[j], db[j])
			}
			if !image.Rect(0, 0, 320, 320).Union(da[j].BBox.Rect()).Eq(image.Rect(0, 0, 320, 320)) {
				t.Errorf("box %v escapes the image", da[j].BBox)
			}
		}
	}
}
