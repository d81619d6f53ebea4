package env

import "testing"

func TestBuildInfoRelease(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{
			name: "nil",
			raw:  nil,
			want: "unknown_image:unknown_version@unknown_rev",
		},
		{
			name: "no labels",
			raw:  map[string]any{"tags": []any{"a"}},
			want: "unknown_image:unknown_version@unknown_rev",
		},
		{
			name: "all labels",
			raw: map[string]any{
				"labels": map[string]any{
					LabelImageTitle:    "repo-ingestion",
					LabelImageVersion:  "main",
					LabelImageRevision: "1d55b62",
				},
			},
			want: "repo-ingestion:main@1d55b62",
		},
		{
			name: "wrong label type is skipped",
			raw: map[string]any{
				"labels": map[string]any{
					LabelImageTitle:   42,
					LabelImageVersion: "v1",
				},
			},
			want: "unknown_image:v1@unknown_rev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewBuildInfo(tt.raw)
			if got := info.Release(); got != tt.want {
				t.Errorf("Release() = %q, want %q", got, tt.want)
			}
			if info.Raw == nil {
				t.Error("Raw should never be nil")
			}
		})
	}
}
