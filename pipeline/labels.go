package pipeline

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Labels maps class ids to display names.
type Labels map[int]string

// LoadLabels reads either "<id> <name>" lines or one name per line where the
// line number is the id.
func LoadLabels(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("opening labels %s: %w", path, err)
	}
	defer f.Close()

	labels := Labels{}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			line++
			continue
		}

		fields := strings.Fields(text)
		if len(fields) > 1 {
			if id, err := strconv.Atoi(fields[0]); err == nil {
				labels[id] = strings.Join(fields[1:], " ")
				line++
				continue
			}
		}
		labels[line] = text
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("reading labels %s: %w", path, err)
	}
	return labels, nil
}

// Name falls back to the numeric id for unknown classes.
func (l Labels) Name(classID int) string {
	if name, ok := l[classID]; ok {
		return name
	}
	return strconv.Itoa(classID)
}
