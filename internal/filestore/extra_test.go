package filestore

import (
	"encoding/json"
	"testing"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
	Note  string `json:"-"`
}

func TestUnmarshalExtra(t *testing.T) {
	var r record
	extra, err := UnmarshalExtra([]byte(`{"name": "a", "COUNT": 2, "owner": "x", "nested": {"k": [1]}}`), &r)
	if err != nil {
		t.Fatalf("UnmarshalExtra failed: %v", err)
	}
	if r.Name != "a" || r.Count != 2 {
		t.Errorf("decoded %+v", r)
	}
	if len(extra) != 2 || string(extra["owner"]) != `"x"` || string(extra["nested"]) != `{"k": [1]}` {
		t.Errorf("extra = %v", extra)
	}

	extra, err = UnmarshalExtra([]byte(`{"name": "a"}`), &r)
	if err != nil || extra != nil {
		t.Errorf("expected nil extra, got %v (%v)", extra, err)
	}

	if _, err := UnmarshalExtra([]byte(`{"name": 1}`), &r); err == nil {
		t.Error("expected type error")
	}
}

func TestMarshalExtra(t *testing.T) {
	tests := []struct {
		name  string
		v     any
		extra Extra
		want  string
	}{
		{
			name: "no extra",
			v:    record{Name: "<a>"},
			want: `{"name":"<a>"}`,
		},
		{
			name:  "extra keys appended sorted",
			v:     record{Name: "a", Count: 1},
			extra: Extra{"zeta": json.RawMessage(`true`), "alpha": json.RawMessage(`"x"`)},
			want:  `{"name":"a","count":1,"alpha":"x","zeta":true}`,
		},
		{
			name:  "declared field wins over stale extra",
			v:     record{Name: "new"},
			extra: Extra{"name": json.RawMessage(`"old"`)},
			want:  `{"name":"new"}`,
		},
		{
			name:  "empty object",
			v:     struct{}{},
			extra: Extra{"owner": json.RawMessage(`"x"`)},
			want:  `{"owner":"x"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalExtra(tt.v, tt.extra)
			if err != nil {
				t.Fatalf("MarshalExtra failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalExtra() = %s, want %s", got, tt.want)
			}
		})
	}
}
