//go:build !linux

package transport

func DropPrivileges(name string) error {
	return ErrUnsupported
}
