package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
)

func testClassifier() *Classifier {
	return &Classifier{cfg: config.RegimeConfig{
		BandwidthThreshold: 10,
		ADXThreshold:       25,
		BullScore:          0.60,
		BearScore:          0.40,
		TopSnapshots:       20,
	}}
}

func TestClassifyVolatileWinsFirst(t *testing.T) {
	c := testClassifier()

	// High bandwidth plus a strong trend would also satisfy the bull rule;
	// the volatile rule is evaluated first.
	regime, confidence := c.classify(0.75, 30, 15)
	assert.Equal(t, db.RegimeVolatile, regime)
	assert.Equal(t, 95, confidence) // 50 + 30 + 15

	// Confidence caps at 100
	_, confidence = c.classify(0.75, 40, 20)
	assert.Equal(t, 100, confidence)
}

func TestClassifyTrendingBull(t *testing.T) {
	c := testClassifier()

	regime, confidence := c.classify(0.70, 30, 5)
	assert.Equal(t, db.RegimeTrendingBull, regime)
	assert.Equal(t, 70, confidence) // (0.70-0.5)*200 + 30

	// Strong score without trend strength is not a bull trend
	regime, _ = c.classify(0.70, 20, 5)
	assert.Equal(t, db.RegimeRanging, regime)
}

func TestClassifyTrendingBear(t *testing.T) {
	c := testClassifier()

	regime, confidence := c.classify(0.30, 28, 5)
	assert.Equal(t, db.RegimeTrendingBear, regime)
	assert.Equal(t, 68, confidence) // (0.5-0.30)*200 + 28
}

func TestClassifyRangingCatchAll(t *testing.T) {
	c := testClassifier()

	regime, confidence := c.classify(0.50, 10, 5)
	assert.Equal(t, db.RegimeRanging, regime)
	assert.Equal(t, 80, confidence) // 100 - 10*2

	// Ranging confidence floors at 30
	_, confidence = c.classify(0.50, 40, 5)
	assert.Equal(t, 30, confidence)
}

func TestClassifyBoundaries(t *testing.T) {
	c := testClassifier()

	// Thresholds are strict: exactly at the line stays ranging
	regime, _ := c.classify(0.60, 30, 5)
	assert.Equal(t, db.RegimeRanging, regime)

	regime, _ = c.classify(0.40, 30, 5)
	assert.Equal(t, db.RegimeRanging, regime)

	regime, _ = c.classify(0.70, 25, 5)
	assert.Equal(t, db.RegimeRanging, regime)
}

func TestCapConfidence(t *testing.T) {
	assert.Equal(t, 100, capConfidence(150))
	assert.Equal(t, 0, capConfidence(-10))
	assert.Equal(t, 68, capConfidence(67.6))
}
