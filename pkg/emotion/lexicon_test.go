package emotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexiconScorer(t *testing.T) {
	scorer := NewLexiconScorer()

	tests := []struct {
		name string
		text string
		want Label
	}{
		{"Intensified joy", "Estou MUITO feliz hoje!", Happy},
		{"Sadness", "estou triste", Sad},
		{"Negated like", "não gosto disso", Negative},
		{"Mild positive", "that was fun", Positive},
		{"No polarity words", "qual é o seu nome?", Neutral},
		{"Empty", "", Neutral},
		{"Emoji only", "😭", Sad},
		{"Mixed", "bom mas ruim", Neutral},
		{"Negator ends at comma", "não, estou feliz", Happy},
		{"Intensifier ends at period", "muito. estou feliz", Happy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := scorer.Polarity(tt.text)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, -1.0)
			assert.LessOrEqual(t, score, 1.0)
			assert.Equal(t, tt.want, LabelFor(score), "score %v", score)
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"oi", "amor", "😍"}, tokenize("Oi, amor😍"))
	assert.Equal(t, []string{"don't", "stop"}, tokenize("Don't stop!"))
	assert.Empty(t, tokenize("  ?! "))
}

func TestLexiconScorer_NegationStaysInClause(t *testing.T) {
	scorer := NewLexiconScorer()

	across, err := scorer.Polarity("não, estou feliz")
	require.NoError(t, err)
	plain, err := scorer.Polarity("estou feliz")
	require.NoError(t, err)
	assert.Equal(t, plain, across)

	negated, err := scorer.Polarity("não estou feliz")
	require.NoError(t, err)
	assert.Less(t, negated, 0.0)
}

func TestClauses(t *testing.T) {
	assert.Equal(t, []string{"não", " estou feliz"}, clauses("não, estou feliz!"))
	assert.Empty(t, clauses("?!"))
}
