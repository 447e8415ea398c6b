//go:build windows

package vfs

import (
	"golang.org/x/sys/windows"
)

// SystemVolumes returns the lister for the drive letters of this machine.
func SystemVolumes() VolumeLister {
	return listDrives
}

// listDrives enumerates fixed, removable and network drives. Drives that are
// not ready (an empty card reader, a disconnected share) are skipped.
func listDrives() ([]Volume, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, err
	}
	var vols []Volume
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		letter := string(rune('A' + i))
		root := letter + `:\`
		p, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		switch windows.GetDriveType(p) {
		case windows.DRIVE_UNKNOWN, windows.DRIVE_NO_ROOT_DIR:
			continue
		}
		var free, total, totalFree uint64
		if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
			continue
		}
		vols = append(vols, Volume{Name: letter, Path: root, Size: int64(total)})
	}
	return vols, nil
}
