package processor

import "strings"

// SplitName splits a person's name into [last, first, middle]. "Last, First
// Middle" and "First Middle Last" forms are accepted; missing parts are empty.
func SplitName(name string) [3]string {
	var out [3]string
	name = strings.TrimSpace(name)
	if name == "" {
		return out
	}

	if last, rest, ok := strings.Cut(name, ","); ok {
		out[0] = strings.TrimSpace(last)
		given := strings.Fields(rest)
		if len(given) > 0 {
			out[1] = given[0]
			out[2] = strings.Join(given[1:], " ")
		}
		return out
	}

	parts := strings.Fields(name)
	out[0] = parts[len(parts)-1]
	if len(parts) > 1 {
		out[1] = parts[0]
		out[2] = strings.Join(parts[1:len(parts)-1], " ")
	}
	return out
}
