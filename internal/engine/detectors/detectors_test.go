package detectors

import (
	"github.com/rampart-ai/rampart/internal/normalize"
)

var testNormalizer = normalize.New(nil)

func normInput(text string) *normalize.Input {
	return testNormalizer.Normalize(text)
}
