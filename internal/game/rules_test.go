package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCournot_ParseDecision(t *testing.T) {
	r := cournotRules{}

	d, err := r.ParseDecision(json.RawMessage(`12.5`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, d.Quantity)

	_, err = r.ParseDecision(json.RawMessage(`-3`))
	assert.ErrorIs(t, err, ErrBadMove)

	_, err = r.ParseDecision(json.RawMessage(`"a lot"`))
	assert.ErrorIs(t, err, ErrBadMove)
}

func TestRulesFor_ClosedVariantSet(t *testing.T) {
	for _, gameType := range []string{TypeCournot, TypeJanKenPo, TypeTest} {
		r, err := rulesFor(gameType)
		require.NoError(t, err)
		assert.Equal(t, gameType, r.Type())
	}

	_, err := rulesFor("chess")
	assert.ErrorIs(t, err, ErrUnknownGameType)
}

func TestParseConfig(t *testing.T) {
	defaults := testConfig()

	cfg, err := ParseConfig(nil, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, cfg)

	cfg, err = ParseConfig(json.RawMessage(`{"maxRounds":10,"roundLength":30,"maxPlayersPerRoom":3,"a":40,"b":2,"y":1,"z":5}`), defaults)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxRounds)
	assert.Equal(t, "30s", cfg.RoundLength.String())
	assert.Equal(t, 3, cfg.MaxPlayersPerRoom)
	assert.Equal(t, MarketParams{A: 40, B: 2, Y: 1, Z: 5}, cfg.Market)

	_, err = ParseConfig(json.RawMessage(`{`), defaults)
	assert.Error(t, err)
}
