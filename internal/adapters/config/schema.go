package config

// Hostfile represents the structure of the dslhost.yaml configuration file.
// Pointer fields distinguish an explicit false from an omitted key.
type Hostfile struct {
	Version             string `yaml:"version"`
	BaseDirectory       string `yaml:"baseDirectory"`
	Pattern             string `yaml:"pattern"`
	CacheDirectory      string `yaml:"cacheDirectory"`
	PersistentCache     *bool  `yaml:"persistentCache"`
	Debounce            string `yaml:"debounce"`
	ForwardConstructors *bool  `yaml:"forwardConstructors"`
}
