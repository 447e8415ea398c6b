package server

import (
	"testing"
	"time"

	"github.com/gonzalop/vftpd/vfs"
)

func TestFormatDirList(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		entries []vfs.Entry
		want    string
	}{
		{
			name: "empty",
			want: "",
		},
		{
			name: "recent and old entries",
			entries: []vfs.Entry{
				{Name: "pub", IsDir: true, ModTime: time.Date(2024, time.June, 1, 8, 5, 0, 0, time.UTC)},
				{Name: "old.txt", Size: 12345, ModTime: time.Date(2019, time.March, 4, 10, 0, 0, 0, time.UTC)},
			},
			want: "drwxr--r-- 1 owner group     0 Jun 01 08:05 pub\r\n" +
				"-rwxr--r-- 1 owner group 12345 Mar 04  2019 old.txt\r\n",
		},
		{
			name: "before the epoch",
			entries: []vfs.Entry{
				{Name: "C", IsDir: true, Size: 7},
				{Name: "ancient", ModTime: time.Date(1950, time.May, 1, 0, 0, 0, 0, time.UTC)},
			},
			want: "drwxr--r-- 1 owner group 7 Jan 01  1970 C\r\n" +
				"-rwxr--r-- 1 owner group 0 Jan 01  1970 ancient\r\n",
		},
		{
			name: "name with spaces",
			entries: []vfs.Entry{
				{Name: "my file.txt", Size: 3, ModTime: now.Add(-time.Hour)},
			},
			want: "-rwxr--r-- 1 owner group 3 Jun 15 11:00 my file.txt\r\n",
		},
		{
			name: "local times rendered in UTC",
			entries: []vfs.Entry{
				{Name: "x", ModTime: time.Date(2024, time.June, 10, 23, 30, 0, 0, time.FixedZone("X", -2*3600))},
			},
			want: "-rwxr--r-- 1 owner group 0 Jun 11 01:30 x\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDirList(tt.entries, now); got != tt.want {
				t.Errorf("got\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestListPath(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"-l":         "",
		"-la /pub":   "/pub",
		"-a -l dir":  "dir",
		" file.txt ": "file.txt",
	}
	for in, want := range tests {
		if got := listPath(in); got != want {
			t.Errorf("listPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuotePath(t *testing.T) {
	if got := quotePath(`/a"b`); got != `"/a""b"` {
		t.Errorf("got %s", got)
	}
}
