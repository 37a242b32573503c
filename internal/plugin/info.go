package plugin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Version is a semantic version.
type Version struct {
	Major int `json:"major" yaml:"major"`
	Minor int `json:"minor" yaml:"minor"`
	Patch int `json:"patch" yaml:"patch"`
}

// ParseVersion parses "1.2.3", tolerating a leading "v", missing minor or
// patch parts and pre-release suffixes, which are ignored.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String returns "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Dependency names a plugin that must be Active, optionally at a minimum
// version. Written as "Name" or "Name >= 1.2.0".
type Dependency struct {
	Name       string   `json:"name" yaml:"name"`
	MinVersion *Version `json:"min_version,omitempty" yaml:"min_version,omitempty"`
}

// ParseDependency parses a dependency declaration.
func ParseDependency(s string) (Dependency, error) {
	name, constraint, found := strings.Cut(s, ">=")
	name = strings.TrimSpace(name)
	if name == "" {
		return Dependency{}, fmt.Errorf("invalid dependency %q", s)
	}
	if !found {
		return Dependency{Name: name}, nil
	}
	v, err := ParseVersion(constraint)
	if err != nil {
		return Dependency{}, fmt.Errorf("invalid dependency %q: %w", s, err)
	}
	return Dependency{Name: name, MinVersion: &v}, nil
}

// String returns the declaration form.
func (d Dependency) String() string {
	if d.MinVersion == nil {
		return d.Name
	}
	return d.Name + " >= " + d.MinVersion.String()
}

// Info describes a plugin.
type Info struct {
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Author       string       `json:"author,omitempty" yaml:"author,omitempty"`
	Version      Version      `json:"version" yaml:"version"`
	Website      string       `json:"website,omitempty" yaml:"website,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Tags         []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// parseInfo decodes the JSON returned by plugin_info. Missing or invalid
// documents yield an Info carrying only fallbackName; malformed
// dependency entries are returned as errors alongside the decoded Info.
func parseInfo(raw, fallbackName string) (Info, []error) {
	info := Info{Name: fallbackName}
	if strings.TrimSpace(raw) == "" || !gjson.Valid(raw) {
		return info, nil
	}

	doc := gjson.Parse(raw)
	if name := doc.Get("name").String(); name != "" {
		info.Name = name
	}
	info.Description = doc.Get("description").String()
	info.Author = doc.Get("author").String()
	info.Website = doc.Get("website").String()
	if v, err := ParseVersion(doc.Get("version").String()); err == nil {
		info.Version = v
	}

	var errs []error
	for _, d := range doc.Get("dependencies").Array() {
		dep, err := ParseDependency(d.String())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		info.Dependencies = append(info.Dependencies, dep)
	}
	for _, t := range doc.Get("tags").Array() {
		info.Tags = append(info.Tags, t.String())
	}
	return info, errs
}
