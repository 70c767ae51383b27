package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanKenPo_ParseDecision(t *testing.T) {
	r := janKenPoRules{}

	d, err := r.ParseDecision(json.RawMessage(`"rock"`))
	require.NoError(t, err)
	assert.Equal(t, "rock", d.Symbol)

	_, err = r.ParseDecision(json.RawMessage(`"lizard"`))
	assert.ErrorIs(t, err, ErrBadMove)

	_, err = r.ParseDecision(json.RawMessage(`42`))
	assert.ErrorIs(t, err, ErrBadMove)
}

func TestJanKenPo_PairwiseResolution(t *testing.T) {
	r := janKenPoRules{}
	result := r.Resolve(Config{}, map[string]Decision{
		"a": {Symbol: "rock"},
		"b": {Symbol: "scissors"},
		"c": {Symbol: "paper"},
	})

	// rock beats scissors, loses to paper; every symbol goes 1-1.
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, 1.0, result[id].Metrics["wins"], id)
		assert.Equal(t, 1.0, result[id].Metrics["losses"], id)
		assert.Equal(t, 0.0, result[id].Metrics["score"], id)
	}
}

func TestJanKenPo_AbsenteeLosesEveryPairing(t *testing.T) {
	r := janKenPoRules{}
	result := r.Resolve(Config{}, map[string]Decision{
		"a": {Symbol: "rock"},
		"b": r.DefaultDecision(),
	})

	assert.Equal(t, 1.0, result["a"].Metrics["wins"])
	assert.Equal(t, 1.0, result["b"].Metrics["losses"])
}

func TestJanKenPo_TwoAbsenteesDraw(t *testing.T) {
	r := janKenPoRules{}
	result := r.Resolve(Config{}, map[string]Decision{
		"a": r.DefaultDecision(),
		"b": r.DefaultDecision(),
	})

	assert.Equal(t, 1.0, result["a"].Metrics["draws"])
	assert.Equal(t, 1.0, result["b"].Metrics["draws"])
}
