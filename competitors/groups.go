package competitors

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// OtherGroup is the group of conditions missing from a GroupMap.
const OtherGroup = "Other"

// GroupMap maps conditions to the broader group they are reported under,
// e.g. "Type 2 Diabetes" to "Diabetes".
type GroupMap map[string]string

// Group returns the group of condition.
func (g GroupMap) Group(condition string) string {
	if grp, ok := g[condition]; ok && grp != "" {
		return grp
	}
	return OtherGroup
}

// LoadGroupMap reads a GroupMap from a JSON or, for .yaml and .yml files,
// YAML object of condition to group. An empty path yields an empty map.
func LoadGroupMap(path string) (GroupMap, error) {
	g := GroupMap{}
	if path == "" {
		return g, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading group map")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &g)
	default:
		err = json.Unmarshal(data, &g)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding group map %s", path)
	}
	return g, nil
}
