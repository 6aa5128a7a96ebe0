package permit

import (
	"regexp"
	"strings"
)

// ExtractZip returns the last ZIP-like match of re in a free-text address, or
// "" when there is none. The last match is used so a house number in the ZIP
// range does not shadow the trailing ZIP. re must capture the five digits in
// group 1.
func ExtractZip(re *regexp.Regexp, address string) string {
	if address == "" || re == nil {
		return ""
	}
	all := re.FindAllStringSubmatch(address, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1][1]
}

// NormalizeZip trims an explicit ZIP field down to its first five digits.
// "78701-1234" becomes "78701"; anything that is not five digits yields "".
func NormalizeZip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 5 {
		return ""
	}
	s = s[:5]
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s
}
