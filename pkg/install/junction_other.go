//go:build !windows

package install

func createJunction(_, _ string) error {
	return errJunctionUnsupported
}
