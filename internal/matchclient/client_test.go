package matchclient

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
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	return img
}

func TestIdentifyParsesMatchesFromMultipartResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identify_person" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("threshold") != "0.6" {
			t.Fatalf("expected threshold form field 0.6, got %q", r.FormValue("threshold"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"matches":[{"suspect_id":"target_a","similarity":0.91,"confidence":0.91}],"matches_found":1}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	matches, err := c.Identify(context.Background(), tinyImage(), 0.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].SuspectID != "target_a" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestIdentifyReturnsErrorOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Identify(context.Background(), tinyImage(), 0.6)
	if err == nil {
		t.Fatal("expected an error on 503")
	}
}

func TestRegisterSendsPersonIDAndImage(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotID = r.FormValue("person_id")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","feature_dimension":256}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if err := c.Register(context.Background(), "target_a", tinyImage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "target_a" {
		t.Fatalf("expected person_id target_a, got %q", gotID)
	}
}

func TestDeleteTreatsNoContentAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if err := c.Delete(context.Background(), "target_a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
