package signature

// yamlSignature is the intermediate struct for parsing YAML signature files.
type yamlSignature struct {
	Name             string   `yaml:"name"`
	ID               string   `yaml:"id"`
	Pattern          string   `yaml:"pattern"`
	Description      string   `yaml:"description,omitempty"`
	Module           string   `yaml:"module,omitempty"`
	Arch             string   `yaml:"arch,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`
	NegativeExamples []string `yaml:"negative_examples,omitempty"`
	References       []string `yaml:"references,omitempty"`
	Categories       []string `yaml:"categories,omitempty"`
}

// yamlSignaturesFile is the top-level structure of a signatures file.
type yamlSignaturesFile struct {
	Signatures []yamlSignature `yaml:"signatures"`
}

// yamlSet is the intermediate struct for parsing signature sets.
type yamlSet struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	SignatureIDs []string `yaml:"include_signature_ids"`
}

// yamlSetsFile is the top-level structure of a signature sets file.
type yamlSetsFile struct {
	Sets []yamlSet `yaml:"signature_sets"`
}
