package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// RequiredEncoders are the ffmpeg audio encoders conversions depend on.
var RequiredEncoders = []string{"ac3", "eac3"}

// MissingEncoders runs `ffmpeg -encoders` and returns the names from want
// that the build does not provide.
func MissingEncoders(ctx context.Context, ffmpeg string, want []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	available := ParseEncoders(out)
	var missing []string
	for _, name := range want {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// ParseEncoders extracts encoder names from `ffmpeg -encoders` output. Lines
// look like " A....D ac3                  ATSC A/52A (AC-3)".
func ParseEncoders(out []byte) map[string]struct{} {
	encoders := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	pastHeader := false
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if !pastHeader {
			pastHeader = len(fields) == 1 && strings.HasPrefix(fields[0], "--")
			continue
		}
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = struct{}{}
	}
	return encoders
}
