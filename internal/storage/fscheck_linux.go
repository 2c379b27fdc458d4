//go:build linux

package storage

import (
	"fmt"
	"syscall"
)

// statfs f_type magics for the network mounts SQLite must avoid.
var linuxNetworkMagic = map[int64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
}

// detectFilesystemType names the filesystem holding path. Local filesystems
// are reported by their hex magic.
func detectFilesystemType(path string) (string, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}
	magic := int64(st.Type) & 0xFFFFFFFF
	if name, ok := linuxNetworkMagic[magic]; ok {
		return name, nil
	}
	return fmt.Sprintf("0x%x", magic), nil
}
