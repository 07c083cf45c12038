// Package props gathers device properties as getprop-style "[key]: [value]" lines.
package props

import (
	"bufio"
	"strings"
)

// NotAvailable stands in for requested keys that have no value.
const NotAvailable = "N/A"

// Prop is one key/value pair.
type Prop struct {
	Key   string
	Value string
}

// Format renders props one per line as "[key]: [value]".
func Format(props []Prop) string {
	var b strings.Builder
	for _, p := range props {
		b.WriteString("[")
		b.WriteString(p.Key)
		b.WriteString("]: [")
		b.WriteString(p.Value)
		b.WriteString("]\n")
	}
	return b.String()
}

// Parse reads getprop-style output. Lines that do not match the format are skipped.
func Parse(text string) []Prop {
	var out []Prop
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		if p, ok := parseLine(scanner.Text()); ok {
			out = append(out, p)
		}
	}
	return out
}

func parseLine(line string) (Prop, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return Prop{}, false
	}
	sep := strings.Index(line, "]: [")
	if sep < 0 {
		return Prop{}, false
	}
	return Prop{Key: line[1:sep], Value: line[sep+4 : len(line)-1]}, true
}

// Filter returns one prop per key in keys order. Keys without a value, or with an
// empty one, report NotAvailable.
func Filter(props []Prop, keys []string) []Prop {
	index := make(map[string]string, len(props))
	for _, p := range props {
		index[p.Key] = p.Value
	}

	out := make([]Prop, 0, len(keys))
	for _, key := range keys {
		value := index[key]
		if strings.TrimSpace(value) == "" {
			value = NotAvailable
		}
		out = append(out, Prop{Key: key, Value: value})
	}
	return out
}
