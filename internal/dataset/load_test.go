package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

const fixtureYAML = `version: 1
questions:
  - id: q1
    question: What was total revenue in the last quarter?
    expected_answer: "150000"
    pipeline: structured
  - id: q2
    question: Who attended the kickoff meeting?
    expected_answer: Alice Smith, Bob Jones
    pipeline: narrative
    tags: [people]
  - id: q3
    question: Which region grew fastest?
    expected_answer: EMEA
    pipeline: structured
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadSpec_YAML_GroupsByPipeline(t *testing.T) {
	spec, err := LoadSpec(writeFixture(t, "questions.yml", fixtureYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	grouped := ByPipeline(spec)
	if len(grouped["structured"]) != 2 || len(grouped["narrative"]) != 1 {
		t.Fatalf("unexpected grouping: %#v", grouped)
	}
	if grouped["structured"][0].ID != "q1" || grouped["structured"][1].ID != "q3" {
		t.Fatalf("file order not preserved: %#v", grouped["structured"])
	}
}

func TestLoadSpec_JSON(t *testing.T) {
	content := `{"version":1,"questions":[{"id":"q1","question":"Total?","expected_answer":"42","pipeline":"structured"}]}`
	spec, err := LoadSpec(writeFixture(t, "questions.json", content))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(spec.Questions) != 1 || spec.Questions[0].ExpectedAnswer != "42" {
		t.Fatalf("unexpected spec: %#v", spec)
	}
}

func TestLoadSpec_DuplicateID_Rejected(t *testing.T) {
	content := `version: 1
questions:
  - {id: q1, question: a?, expected_answer: x, pipeline: p}
  - {id: q1, question: b?, expected_answer: y, pipeline: p}
`
	if _, err := LoadSpec(writeFixture(t, "questions.yml", content)); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestLoadSpec_EmptyDataset_Rejected(t *testing.T) {
	if _, err := LoadSpec(writeFixture(t, "questions.yml", "version: 1\nquestions: []\n")); err == nil {
		t.Fatalf("expected empty dataset error")
	}
}

func TestLoadSpec_UnknownField_Rejected(t *testing.T) {
	content := `version: 1
questions:
  - {id: q1, question: a?, expected_answer: x, pipeline: p, bogus: y}
`
	if _, err := LoadSpec(writeFixture(t, "questions.yml", content)); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
