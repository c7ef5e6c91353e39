package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVars() map[string]interface{} {
	return map[string]interface{}{
		"id":               "m1",
		"channel_id":       "chanA",
		"guild_id":         "guild-1",
		"content":          "hello world",
		"author":           map[string]interface{}{"id": "u1", "name": "alice", "bot": false},
		"attachment_count": int64(2),
		"embed_count":      int64(0),
	}
}

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "valid comparison", expr: `channel_id == "chanA"`},
		{name: "valid map access", expr: `author.name != "spam-bot"`},
		{name: "valid numeric", expr: `attachment_count > 0 || content.size() > 0`},
		{name: "non-bool expression", expr: `content`, wantError: true},
		{name: "invalid syntax", expr: `invalid syntax here!!!`, wantError: true},
		{name: "undefined variable", expr: `payload.status == "x"`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRule_Evaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "content contains", expr: `content.contains("hello")`, want: true},
		{name: "content excludes", expr: `!content.contains("hello")`, want: false},
		{name: "author field", expr: `author.name == "alice"`, want: true},
		{name: "counts", expr: `attachment_count == 2 && embed_count == 0`, want: true},
		{name: "guild allowlist", expr: `guild_id in ["guild-1", "guild-2"]`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := eval.CompileRule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, rule.Expression)

			got, err := rule.Evaluate(context.Background(), testVars())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_EvaluateMissingKeyErrors(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	rule, err := eval.CompileRule(`author.missing == "x"`)
	require.NoError(t, err)

	_, err = rule.Evaluate(context.Background(), testVars())
	assert.Error(t, err)
}
