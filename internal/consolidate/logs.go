package consolidate

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"stereomatch/internal/stereo"
)

// verifyLog checks the stderr log of a finished profile job. The plane
// program reports "N Events successfully processed"; the tube program
// reports "Events out: N" and mentions "not found" on missing calibration.
func verifyLog(path string, kind stereo.Kind) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	processed := -1
	notFound := 0
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch kind {
		case stereo.KindPlane:
			if strings.Contains(line, "Events successfully processed") {
				if n, err := strconv.Atoi(fields[0]); err == nil {
					processed = n
				}
			}
		default:
			if strings.Contains(line, "not found") {
				notFound++
			}
			if strings.Contains(line, "Events out") {
				if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
					processed = n
				}
			}
		}
	}
	if processed != 1 {
		return fmt.Errorf("expected one processed event, log reports %d", processed)
	}
	if notFound > 0 {
		return fmt.Errorf("log reports %d not-found errors", notFound)
	}
	return nil
}
