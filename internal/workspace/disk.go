package workspace

import "syscall"

// DefaultMinFreeBytes is the free-space floor required before spawning a
// workspace. 100 MiB covers a checkout plus the bundle with margin.
const DefaultMinFreeBytes = 100 << 20

// checkDiskSpace fails with InsufficientDiskSpaceError when the
// filesystem holding path has less than required bytes available. A
// statfs failure is ignored rather than blocking spawns on exotic
// filesystems.
func checkDiskSpace(path string, required uint64) error {
	if required == 0 {
		return nil
	}
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	available := stat.Bavail * uint64(stat.Bsize)
	if available < required {
		return &InsufficientDiskSpaceError{Path: path, Available: available, Required: required}
	}
	return nil
}
