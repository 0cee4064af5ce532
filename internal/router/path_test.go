package router

import (
	"errors"
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		label string
		want  DecisionPath
	}{
		{"no-retrieval reply", PathNoRetrieval},
		{"retrieve", PathRetrieve},
		{"cross-question", PathCrossQuestion},
		{"deny", PathDeny},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := parsePath(tt.label)
			if err != nil {
				t.Fatalf("parsePath(%q) error: %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("parsePath(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestParsePathUnknownLabel(t *testing.T) {
	for _, label := range []string{"", "RETRIEVE", "answer", "no-retrieval"} {
		_, err := parsePath(label)

		var classErr *ClassificationError
		if !errors.As(err, &classErr) {
			t.Errorf("parsePath(%q) error = %v, want *ClassificationError", label, err)
			continue
		}
		if classErr.Label != label {
			t.Errorf("ClassificationError.Label = %q, want %q", classErr.Label, label)
		}
	}
}

func TestPathStringRoundTrips(t *testing.T) {
	for _, path := range []DecisionPath{PathNoRetrieval, PathRetrieve, PathCrossQuestion, PathDeny} {
		got, err := parsePath(path.String())
		if err != nil {
			t.Fatalf("parsePath(%v.String()) error: %v", path, err)
		}
		if got != path {
			t.Errorf("parsePath(%q) = %v, want %v", path.String(), got, path)
		}
	}
}
