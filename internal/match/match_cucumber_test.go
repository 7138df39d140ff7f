//go:build cucumber

package match_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"

	"pipeval/internal/match"
)

// TestMatchingScenarios runs the answer-matching feature scenarios.
func TestMatchingScenarios(t *testing.T) {
	featurePath := filepath.Join("..", "..", "spec", "features", "matching", "answer-matching.feature")
	suite := godog.TestSuite{
		Name:                "answer-matching",
		ScenarioInitializer: InitializeMatchingScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{featurePath},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeMatchingScenario wires steps for matcher scenarios.
func InitializeMatchingScenario(ctx *godog.ScenarioContext) {
	state := &matchingScenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^the expected answer "([^"]*)"$`, state.givenExpected)
	ctx.Step(`^the pipeline produces "([^"]*)"$`, state.whenProduced)
	ctx.Step(`^the answer is judged correct$`, state.thenCorrect)
	ctx.Step(`^the answer is judged incorrect$`, state.thenIncorrect)
	ctx.Step(`^the match method is "([^"]*)"$`, state.thenMethod)
	ctx.Step(`^the score is greater than 0$`, state.thenPositiveScore)
}

type matchingScenarioState struct {
	expected string
	result   match.Result
}

func (s *matchingScenarioState) reset() {
	s.expected = ""
	s.result = match.Result{}
}

func (s *matchingScenarioState) givenExpected(expected string) error {
	s.expected = expected
	return nil
}

func (s *matchingScenarioState) whenProduced(produced string) error {
	s.result = match.Evaluate(produced, s.expected, match.Options{})
	return nil
}

func (s *matchingScenarioState) thenCorrect() error {
	if !s.result.Correct {
		return fmt.Errorf("judged incorrect (method %s, score %.3f)", s.result.Method, s.result.Score)
	}
	return nil
}

func (s *matchingScenarioState) thenIncorrect() error {
	if s.result.Correct {
		return fmt.Errorf("judged correct (method %s, score %.3f)", s.result.Method, s.result.Score)
	}
	return nil
}

func (s *matchingScenarioState) thenMethod(method string) error {
	if string(s.result.Method) != method {
		return fmt.Errorf("method = %s, want %s", s.result.Method, method)
	}
	return nil
}

func (s *matchingScenarioState) thenPositiveScore() error {
	if s.result.Score <= 0 {
		return fmt.Errorf("score = %.3f, want > 0", s.result.Score)
	}
	return nil
}
