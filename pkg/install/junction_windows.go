//go:build windows

package install

import (
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

func createJunction(target, link string) error {
	out, err := exec.Command("cmd", "/c", "mklink", "/J", link, target).CombinedOutput()
	if err != nil {
		return errors.Errorf("mklink /J failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}
