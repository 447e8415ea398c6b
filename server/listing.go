package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gonzalop/vftpd/vfs"
)

var unixEpoch = time.Unix(0, 0).UTC()

// formatDirList renders entries in the Unix "ls -l" style understood by
// most clients, one CRLF-terminated line per entry:
//
//	drwxr--r-- 1 owner group  4096 Mar 01 12:30 name
//	-rwxr--r-- 1 owner group 12345 Jun 14  2019 name
//
// Sizes are right-aligned to the widest one. Entries modified more than six
// months before now show the year instead of the time.
func formatDirList(entries []vfs.Entry, now time.Time) string {
	width := 1
	for _, e := range entries {
		width = max(width, len(strconv.FormatInt(e.Size, 10)))
	}
	cutoff := now.UTC().AddDate(0, -6, 0)

	var b strings.Builder
	for _, e := range entries {
		kind := '-'
		if e.IsDir {
			kind = 'd'
		}
		mtime := e.ModTime.UTC()
		if mtime.Before(unixEpoch) {
			mtime = unixEpoch
		}
		stamp := mtime.Format("Jan 02 15:04")
		if mtime.Before(cutoff) {
			stamp = mtime.Format("Jan 02  2006")
		}
		fmt.Fprintf(&b, "%crwxr--r-- 1 owner group %*d %s %s\r\n", kind, width, e.Size, stamp, e.Name)
	}
	return b.String()
}
