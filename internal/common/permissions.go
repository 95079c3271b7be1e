package common

import "os"

// FilePermissionSecure is the mode expected on credential files.
const FilePermissionSecure = 0600

// IsPrivate reports whether mode grants no access to group or others.
func IsPrivate(mode os.FileMode) bool {
	return mode.Perm()&^FilePermissionSecure == 0
}
