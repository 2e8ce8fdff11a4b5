package fs

import (
	"fmt"

	"os/exec"

	"github.com/pkg/errors"
)

// ReadTail returns the last lineCount lines of the file at filePath. Used for
// pulling worker diagnostics into logs without loading whole output files.
func ReadTail(filePath string, lineCount int) (tail string, err error) {
	lineCountParam := fmt.Sprintf("-n%d", lineCount)
	output, err := exec.Command("tail", lineCountParam, filePath).CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "could not read tail of %q", filePath)
	}

	return string(output), nil
}
