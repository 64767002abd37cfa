package catalog

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/khanglvm/reelfeed/internal/model"
)

// Filter is a compiled CEL predicate over items.
//
// Available variables: id, creator, username, description (string); likes,
// comments, shares, followers (int); hashtags (list of string). Example:
//
//	likes > 100000 && "#travel" in hashtags
type Filter struct {
	expr    string
	program cel.Program
}

func newFilterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("creator", cel.StringType),
		cel.Variable("username", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("likes", cel.IntType),
		cel.Variable("comments", cel.IntType),
		cel.Variable("shares", cel.IntType),
		cel.Variable("followers", cel.IntType),
		cel.Variable("hashtags", cel.ListType(cel.StringType)),
	)
}

// NewFilter compiles expr. The expression must evaluate to a bool.
func NewFilter(expr string) (*Filter, error) {
	env, err := newFilterEnv()
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Parse(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("parse filter: %w", iss.Err())
	}

	checked, iss := env.Check(ast)
	if iss.Err() != nil {
		return nil, fmt.Errorf("check filter: %w", iss.Err())
	}

	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter must return bool, got %s", checked.OutputType())
	}

	program, err := env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("build filter program: %w", err)
	}

	return &Filter{expr: expr, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Match evaluates the filter against item. Evaluation errors count as no match.
func (f *Filter) Match(item model.Item) bool {
	tags := item.Hashtags()
	if tags == nil {
		tags = []string{}
	}

	result, _, err := f.program.Eval(map[string]any{
		"id":          item.ID,
		"creator":     item.Creator.ID,
		"username":    item.Creator.Username,
		"description": item.Description,
		"likes":       item.Likes,
		"comments":    item.Comments,
		"shares":      item.Shares,
		"followers":   item.Creator.Followers,
		"hashtags":    tags,
	})
	if err != nil {
		return false
	}

	matched, ok := result.Value().(bool)
	return ok && matched
}

// Apply returns the items that match, preserving order. A nil filter keeps everything.
func (f *Filter) Apply(items []model.Item) []model.Item {
	if f == nil {
		return items
	}

	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}
