package store

import "testing"

func TestObjectKey(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		bucket string
		want   string
	}{
		{"full url", "https://campaign-html/vr20251001/template.html", "campaign-html", "vr20251001/template.html"},
		{"bare key", "vr20251001/template.html", "campaign-html", "vr20251001/template.html"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := objectKey(tc.url, tc.bucket); got != tc.want {
				t.Fatalf("objectKey(%q, %q) = %q, want %q", tc.url, tc.bucket, got, tc.want)
			}
		})
	}
}
