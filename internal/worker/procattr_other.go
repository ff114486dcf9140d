//go:build !unix

package worker

import (
	"os"
	"os/exec"
)

func setProcAttr(cmd *exec.Cmd) {}

func killProcess(p *os.Process) error {
	return p.Kill()
}
