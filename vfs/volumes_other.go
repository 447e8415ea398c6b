//go:build !windows

package vfs

// SystemVolumes returns nil: the native filesystem has a single root.
func SystemVolumes() VolumeLister {
	return nil
}
