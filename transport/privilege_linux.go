//go:build linux

package transport

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// DropPrivileges switches the process to the named account, group first.
// It is meant to run right after binding a port below 1024.
func DropPrivileges(name string) error {
	u, err := user.Lookup(name)
	if err != nil {
		return fmt.Errorf("transport: lookup user %s: %w", name, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("transport: uid of %s: %w", name, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("transport: gid of %s: %w", name, err)
	}

	if unix.Getuid() == uid && unix.Getgid() == gid {
		return nil
	}

	if err := unix.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("transport: setgroups: %w", err)
	}
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("transport: setgid: %w", err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("transport: setuid: %w", err)
	}

	return nil
}
