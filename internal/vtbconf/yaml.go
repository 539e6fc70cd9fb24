package vtbconf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vtbond/vtbond/internal/vtberr"
)

// Load reads, decodes, and validates a YAML config file, mirroring
// original_source/src/config.rs's load_config.
func Load(path string) (*Resolved, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file %s", vtberr.ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", vtberr.ErrInvalidConfig, path, err)
	}

	return c.Resolve()
}
