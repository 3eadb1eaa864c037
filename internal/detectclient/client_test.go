package detectclient

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func tinyImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestDetectFiltersToPersonClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","results":{"all_detections":[
			{"class_name":"person","confidence":0.88,"bbox":{"x1":1,"y1":2,"x2":50,"y2":120}},
			{"class_name":"bicycle","confidence":0.95,"bbox":{"x1":0,"y1":0,"x2":10,"y2":10}}
		],"person_count":1}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	detections, err := c.Detect(context.Background(), tinyImage(), 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("expected only the person detection to survive, got %d", len(detections))
	}
	if detections[0].Class != "person" {
		t.Fatalf("expected class person, got %s", detections[0].Class)
	}
	if detections[0].BBox.X2 != 50 {
		t.Fatalf("expected bbox to round-trip, got %+v", detections[0].BBox)
	}
}

func TestDetectReturnsErrorOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Detect(context.Background(), tinyImage(), 0.5)
	if err == nil {
		t.Fatal("expected an error on 502")
	}
}

func TestDetectReturnsErrorOnNon2xxNon5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Detect(context.Background(), tinyImage(), 0.5)
	if err == nil {
		t.Fatal("expected an error on 400")
	}
}
