package market

import (
	"embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed crosswalks/*.yaml
var crosswalkFS embed.FS

var zip5 = regexp.MustCompile(`^\d{5}$`)

func loadCrosswalk(path string) (map[string]string, error) {
	data, err := crosswalkFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCrosswalk(data)
}

// ParseCrosswalk decodes a "submarket: [zip, ...]" YAML document into a
// ZIP -> submarket map. A ZIP listed under two submarkets is an error.
func ParseCrosswalk(data []byte) (map[string]string, error) {
	var bySubmarket map[string][]string
	if err := yaml.Unmarshal(data, &bySubmarket); err != nil {
		return nil, fmt.Errorf("parse crosswalk: %w", err)
	}

	out := map[string]string{}
	for name, zips := range bySubmarket {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("crosswalk: empty submarket name")
		}
		for _, z := range zips {
			z = strings.TrimSpace(z)
			if !zip5.MatchString(z) {
				return nil, fmt.Errorf("crosswalk %s: invalid zip %q", name, z)
			}
			if prev, dup := out[z]; dup {
				return nil, fmt.Errorf("crosswalk: zip %s mapped to both %q and %q", z, prev, name)
			}
			out[z] = name
		}
	}
	return out, nil
}
