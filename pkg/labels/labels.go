//Package labels loads the optional class id to display name table used to annotate detections.
package labels

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/chenBenjamin97/edgetpu-capture/pkg/utils"
	"github.com/pkg/errors"
)

//Table maps a detection label id to its human readable name. It is never modified after Load.
type Table map[int]string

//Name returns the display name of given label id, ok is false when the table has no entry for it
func (t Table) Name(id int) (string, bool) {
	name, ok := t[id]
	return name, ok
}

//Load reads a label file where each non-empty line is "<id> <name>". The first whitespace run separates
//the id from the name, the name is trimmed. An empty path returns an empty table.
//When an id appears more than once, the last line wins.
func Load(path string) (Table, error) {
	table := make(Table)
	if path == "" {
		return table, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, utils.ResourceError(err, "labels.Load: could not open '%s'", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		id, name, err := parseLine(line)
		if err != nil {
			return nil, utils.FormatError(err, "labels.Load: '%s' line %d", path, lineNum)
		}
		table[id] = name
	}

	if err := scanner.Err(); err != nil {
		return nil, utils.ResourceError(err, "labels.Load: could not read '%s'", path)
	}

	return table, nil
}

//parseLine splits a trimmed, non-empty line into its id and name
func parseLine(line string) (int, string, error) {
	sep := strings.IndexFunc(line, unicode.IsSpace)
	if sep < 0 {
		return 0, "", errors.Errorf("missing name after id '%s'", line)
	}

	id, err := strconv.Atoi(line[:sep])
	if err != nil {
		return 0, "", err
	}

	return id, strings.TrimSpace(line[sep:]), nil
}
