package relay

import (
	"context"
	"fmt"

	apperrors "duplicator/pkg/errors"
	"duplicator/pkg/cel"
)

// RuleSet is an optional conjunction of CEL expressions a message must
// satisfy after it passes ShouldForward. An empty set accepts everything.
type RuleSet struct {
	rules []*cel.Rule
}

// CompileRules compiles every expression once. Any invalid expression is a
// configuration error.
func CompileRules(expressions []string) (*RuleSet, error) {
	if len(expressions) == 0 {
		return &RuleSet{}, nil
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, apperrors.ErrConfig.WithCause(err)
	}

	rules := make([]*cel.Rule, 0, len(expressions))
	for i, expr := range expressions {
		rule, err := evaluator.CompileRule(expr)
		if err != nil {
			return nil, apperrors.ErrConfig.
				WithMessage(fmt.Sprintf("invalid relay rule %d", i)).
				WithCause(err).
				WithDetail("expression", expr)
		}
		rules = append(rules, rule)
	}

	return &RuleSet{rules: rules}, nil
}

func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Allow evaluates the rules in order and stops at the first false result.
// It returns the expression that rejected the message, if any.
func (s *RuleSet) Allow(ctx context.Context, msg InboundMessage) (bool, string, error) {
	if s.Len() == 0 {
		return true, "", nil
	}

	vars := ruleVariables(msg)
	for _, rule := range s.rules {
		ok, err := rule.Evaluate(ctx, vars)
		if err != nil {
			return false, rule.Expression, apperrors.ErrRuleEvaluation.
				WithCause(err).
				WithDetail("expression", rule.Expression)
		}
		if !ok {
			return false, rule.Expression, nil
		}
	}
	return true, "", nil
}

func ruleVariables(msg InboundMessage) map[string]interface{} {
	return map[string]interface{}{
		"id":         msg.ID,
		"channel_id": msg.ChannelID,
		"guild_id":   msg.GuildID,
		"content":    msg.Content,
		"author": map[string]interface{}{
			"id":         msg.Author.ID,
			"name":       msg.Author.DisplayName,
			"avatar_url": msg.Author.AvatarURL,
			"bot":        msg.Author.Bot,
		},
		"attachment_count": int64(len(msg.Attachments)),
		"embed_count":      int64(len(msg.Embeds)),
	}
}
