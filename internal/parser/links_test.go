package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestExtractLinks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Link
	}{
		{
			name: "no links",
			text: "checkout is slow since this morning",
			want: []Link{},
		},
		{
			name: "http url is not also a file link",
			text: "see https://logs.example.com/api/errors?since=1h for details",
			want: []Link{{Type: LinkHTTP, URL: "https://logs.example.com/api/errors?since=1h"}},
		},
		{
			name: "mixed sources in position order",
			text: "compare /var/log/app/error.log with ssh://bastion/var/log/x and ftp://mirror/dump.txt",
			want: []Link{
				{Type: LinkFile, URL: "/var/log/app/error.log"},
				{Type: LinkSSH, URL: "ssh://bastion/var/log/x"},
				{Type: LinkFTP, URL: "ftp://mirror/dump.txt"},
			},
		},
		{
			name: "duplicates collapse",
			text: "http://a.example/x and again http://a.example/x",
			want: []Link{{Type: LinkHTTP, URL: "http://a.example/x"}},
		},
		{
			name: "file scheme and windows path",
			text: "file:///tmp/trace.txt or C:\\logs\\svc.txt",
			want: []Link{
				{Type: LinkFile, URL: "file:///tmp/trace.txt"},
				{Type: LinkFile, URL: "C:\\logs\\svc.txt"},
			},
		},
		{
			name: "bare log file name",
			text: "the worker.log shows it",
			want: []Link{{Type: LinkLogPath, URL: "worker.log"}},
		},
		{
			name: "trailing punctuation trimmed",
			text: "Check HTTPS://status.example.com/health.",
			want: []Link{{Type: LinkHTTP, URL: "HTTPS://status.example.com/health"}},
		},
		{
			name: "slash inside a word is not a path",
			text: "restart and/or redeploy, host:8080 is down",
			want: []Link{},
		},
	}

	ignoreOffsets := cmpopts.IgnoreFields(Link{}, "Start", "End")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractLinks(tt.text)
			if diff := cmp.Diff(tt.want, got, ignoreOffsets); diff != "" {
				t.Errorf("ExtractLinks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractLinks_Offsets(t *testing.T) {
	text := "tail /var/log/nginx/error.log now"
	links := ExtractLinks(text)
	if len(links) != 1 {
		t.Fatalf("expected one link, got %+v", links)
	}
	l := links[0]
	if text[l.Start:l.End] != l.URL {
		t.Errorf("offsets %d:%d do not cover %q", l.Start, l.End, l.URL)
	}
}
