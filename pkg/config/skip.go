package config

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/surrealdb/surrealport/pkg/blueprint"
)

// SkipWhen compiles expr into a blueprint override yielding rules unless
// expr evaluates to true.
//
// The expression sees three variables: mode ("serializing" or
// "deserializing"), type (the record type) and record. While serializing,
// record holds the blueprint fields of the stored record plus its real id
// under "id". While deserializing it is the incoming serialized entity.
func SkipWhen(expr string, rules []blueprint.Rule) (blueprint.Func, error) {
	env, err := cel.NewEnv(
		cel.Variable("mode", cel.StringType),
		cel.Variable("type", cel.StringType),
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q does not yield a bool", expr)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, in blueprint.Input) ([]blueprint.Rule, bool, error) {
		out, _, err := prg.ContextEval(ctx, map[string]any{
			"mode":   in.Mode.String(),
			"type":   string(in.Type),
			"record": recordVars(in, rules),
		})
		if err != nil {
			return nil, false, fmt.Errorf("skip_when: %w", err)
		}
		skip, ok := out.Value().(bool)
		if !ok {
			return nil, false, fmt.Errorf("skip_when: got %T, want bool", out.Value())
		}
		if skip {
			return nil, false, nil
		}
		return rules, true, nil
	}, nil
}

func recordVars(in blueprint.Input, rules []blueprint.Rule) map[string]any {
	if in.Mode == blueprint.Deserializing || in.Record == nil {
		vars := make(map[string]any, len(in.Entity))
		for k, v := range in.Entity {
			vars[k] = v
		}
		return vars
	}

	vars := make(map[string]any, len(rules)+1)
	for _, r := range rules {
		if v := in.Record.Get(r.FieldName()); v != nil {
			vars[r.FieldName()] = v
		}
	}
	if id := in.Record.ID(); id != nil {
		vars["id"] = id
	}
	return vars
}
