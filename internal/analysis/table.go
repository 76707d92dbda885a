package analysis

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"metad/internal/services"
)

// LoadTable reads a whitespace-separated numeric table such as a HILLS or
// COLVAR file. Comment lines starting with '#' or '@' and blank lines are
// skipped. Every data row must carry the same number of columns.
func LoadTable(path string) ([][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrStageFailure, "", "load table", path, err)
	}
	defer file.Close()

	var rows [][]float64
	width := 0
	lineNo := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "@") {
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for i, field := range fields {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, services.Wrap(services.ErrStageFailure, "", "load table",
					fmt.Sprintf("%s:%d: bad value %q", path, lineNo, field), err)
			}
			row[i] = value
		}
		if width == 0 {
			width = len(row)
		} else if len(row) != width {
			return nil, services.Wrap(services.ErrStageFailure, "", "load table",
				fmt.Sprintf("%s:%d: expected %d columns, found %d", path, lineNo, width, len(row)), nil)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrStageFailure, "", "load table", path, err)
	}
	if len(rows) == 0 {
		return nil, services.Wrap(services.ErrStageFailure, "", "load table", path+": no data rows", nil)
	}
	return rows, nil
}

// CountRows returns the number of data rows in a table file.
func CountRows(path string) (int, error) {
	rows, err := LoadTable(path)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
