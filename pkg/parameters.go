package eutel

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parameters holds the named scalar run parameters attached to an event.
// Missing names read as zero.
type Parameters map[string]float64

func (p Parameters) Int(name string) int {
	return int(p[name])
}

func (p Parameters) Float(name string) float64 {
	return p[name]
}

func (p Parameters) Set(name string, value float64) {
	p[name] = value
}

func (p Parameters) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// ParseParameters reads "key=value" lines. Blank lines and lines starting
// with '#' are ignored.
func ParseParameters(r io.Reader) (Parameters, error) {
	params := make(Parameters)
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: missing '=' in %q", lineNumber, line)
		}
		key = strings.TrimSpace(key)
		number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parameter %s: %w", lineNumber, key, err)
		}
		params[key] = number
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return params, nil
}

// Format writes the parameters as "key=value" lines in the given key order.
func (p Parameters) Format(w io.Writer, keys []string) error {
	for _, key := range keys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", key, strconv.FormatFloat(p[key], 'g', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}
