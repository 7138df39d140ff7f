package dataset

// Spec is the question fixture schema loaded from JSON or YAML.
type Spec struct {
	Version   int        `json:"version" yaml:"version"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Question is one immutable fixture: created at dataset load, never mutated.
type Question struct {
	ID             string   `json:"id" yaml:"id"`
	Text           string   `json:"question" yaml:"question"`
	ExpectedAnswer string   `json:"expected_answer" yaml:"expected_answer"`
	TargetPipeline string   `json:"pipeline" yaml:"pipeline"`
	Tags           []string `json:"tags,omitempty" yaml:"tags"`
}
