package dedup

import (
	"io"
	"log"
	"testing"

	"github.com/dvergara/leadtap/internal/model"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name string
		rec  model.BusinessRecord
		want Key
	}{
		{
			name: "plain url",
			rec:  model.BusinessRecord{MapsURL: "https://www.google.com/maps/place/Acme"},
			want: "https://www.google.com/maps/place/Acme",
		},
		{
			name: "query stripped",
			rec:  model.BusinessRecord{MapsURL: "https://www.google.com/maps/place/Acme?authuser=0&hl=en"},
			want: "https://www.google.com/maps/place/Acme",
		},
		{
			name: "fragment stripped",
			rec:  model.BusinessRecord{MapsURL: "https://www.google.com/maps/place/Acme#reviews"},
			want: "https://www.google.com/maps/place/Acme",
		},
		{
			name: "trailing slash stripped",
			rec:  model.BusinessRecord{MapsURL: "https://www.google.com/maps/place/Acme/"},
			want: "https://www.google.com/maps/place/Acme",
		},
		{
			name: "scheme and host lowercased, path case kept",
			rec:  model.BusinessRecord{MapsURL: "HTTPS://WWW.Google.COM/maps/place/Acme"},
			want: "https://www.google.com/maps/place/Acme",
		},
		{
			name: "fallback on name and address",
			rec:  model.BusinessRecord{Name: "Acme  Legal", Address: "123  Main   St"},
			want: "acme legal|123 main st",
		},
		{
			name: "fallback with empty address",
			rec:  model.BusinessRecord{Name: "Acme Legal"},
			want: "acme legal|",
		},
		{
			name: "keyless",
			rec:  model.BusinessRecord{Address: "123 Main St"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyFor(tt.rec); got != tt.want {
				t.Errorf("KeyFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyForEquivalentURLsCollide(t *testing.T) {
	a := KeyFor(model.BusinessRecord{MapsURL: "https://www.google.com/maps/place/Acme?hl=en"})
	b := KeyFor(model.BusinessRecord{MapsURL: "https://WWW.GOOGLE.COM/maps/place/Acme/#about"})
	if a == "" || a != b {
		t.Errorf("equivalent URLs produced different keys: %q vs %q", a, b)
	}
}

func TestDeduplicator(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	t.Run("first record claims the key", func(t *testing.T) {
		d := New(nil, logger)
		a := model.BusinessRecord{Name: "Acme", MapsURL: "https://maps.example/place/1"}
		b := model.BusinessRecord{Name: "Acme Duplicate", MapsURL: "https://maps.example/place/1?hl=en"}

		if d.IsDuplicate(a) {
			t.Fatal("first record reported duplicate")
		}
		if !d.IsDuplicate(b) {
			t.Error("second record with same key not reported duplicate")
		}
		if got := d.Len(); got != 1 {
			t.Errorf("Len() = %d, want 1", got)
		}
	})

	t.Run("seed keys count as seen", func(t *testing.T) {
		rec := model.BusinessRecord{Name: "Acme", MapsURL: "https://maps.example/place/1"}
		d := New([]Key{KeyFor(rec)}, logger)
		if !d.IsDuplicate(rec) {
			t.Error("seeded key not reported duplicate")
		}
	})

	t.Run("keyless records pass through", func(t *testing.T) {
		d := New(nil, logger)
		rec := model.BusinessRecord{Address: "somewhere"}
		if d.IsDuplicate(rec) || d.IsDuplicate(rec) {
			t.Error("keyless record reported duplicate")
		}
	})
}
