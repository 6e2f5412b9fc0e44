package mmio

import (
	"strconv"
	"strings"
)

// Args is a parsed plugin argument string. The simulator passes one opaque
// string per device; these helpers cover the common "value" and
// "key=value,key=value" shapes. Every helper is permissive: malformed input
// yields the caller's default, never an error, because construction has no
// failure path.
type Args map[string]string

// PositionalKey holds a leading value without a key, as in "2a" or
// "2a,mode=rw".
const PositionalKey = ""

// ParseArgs splits a comma separated list of key=value pairs. An element
// without '=' is stored under PositionalKey (the first one wins). Keys are
// case-insensitive; surrounding whitespace is ignored.
func ParseArgs(args string) Args {
	out := make(Args)
	for _, part := range strings.Split(args, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, found := strings.Cut(part, "=")
		if !found {
			if _, set := out[PositionalKey]; !set {
				out[PositionalKey] = part
			}
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(val)
	}
	return out
}

// Positional returns the leading keyless value, if any.
func (a Args) Positional() string {
	return a[PositionalKey]
}

// GetString returns the value for key and whether it was present.
func (a Args) GetString(key string) (string, bool) {
	v, ok := a[strings.ToLower(key)]
	return v, ok
}

// GetStringDefault returns the value for key, or defaultValue if absent or empty.
func (a Args) GetStringDefault(key, defaultValue string) string {
	v, ok := a.GetString(key)
	if !ok || v == "" {
		return defaultValue
	}
	return v
}

// GetUint parses the value for key as an unsigned integer. Decimal, 0x hex,
// 0o octal and 0b binary forms are accepted.
func (a Args) GetUint(key string) (uint64, bool) {
	v, ok := a.GetString(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 0, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetUintDefault returns the parsed value for key, or defaultValue.
func (a Args) GetUintDefault(key string, defaultValue uint64) uint64 {
	n, ok := a.GetUint(key)
	if !ok {
		return defaultValue
	}
	return n
}

// GetBool parses the value for key with strconv.ParseBool. A key present
// without a value ("ro=") counts as true.
func (a Args) GetBool(key string) (bool, bool) {
	v, ok := a.GetString(key)
	if !ok {
		return false, false
	}
	if v == "" {
		return true, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// GetBoolDefault returns the parsed value for key, or defaultValue.
func (a Args) GetBoolDefault(key string, defaultValue bool) bool {
	b, ok := a.GetBool(key)
	if !ok {
		return defaultValue
	}
	return b
}

// ParseHex parses s as a hexadecimal number that fits in bitSize bits. An
// optional 0x prefix is accepted. Anything unparsable or out of range
// returns defaultValue.
func ParseHex(s string, bitSize int, defaultValue uint64) uint64 {
	s = strings.TrimSpace(s)
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	n, err := strconv.ParseUint(s, 16, bitSize)
	if err != nil {
		return defaultValue
	}
	return n
}

// ParseUint parses s like Args.GetUint, bounded to bitSize bits.
func ParseUint(s string, bitSize int, defaultValue uint64) uint64 {
	n, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 0, bitSize)
	if err != nil {
		return defaultValue
	}
	return n
}
