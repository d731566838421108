package db

import (
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/sql"
)

// variable is a DECLAREd @name of a channel. Assignments are converted
// to spec.
type variable struct {
	spec  sql.TypeSpec
	value core.Value
}

func (v *variable) assign(value core.Value) error {
	if v.spec.Type == core.NullType {
		v.spec = sql.TypeSpec{Type: value.Type()}
		v.value = value
		return nil
	}
	converted, err := castValue(value, v.spec)
	if err != nil {
		return err
	}
	v.value = converted
	return nil
}

// setVariable assigns name, declaring it with the value's type when it
// does not exist yet.
func (ch *Channel) setVariable(name string, value core.Value) error {
	if v, ok := ch.variables[name]; ok {
		return v.assign(value)
	}
	ch.variables[name] = &variable{spec: sql.TypeSpec{Type: value.Type()}, value: value}
	return nil
}

func (ch *Channel) executeDeclareStatement(statement sql.DeclareStatement) {
	ch.variables[statement.Name] = &variable{
		spec:  statement.Spec,
		value: core.Null(statement.Spec.Type),
	}
}

func (ch *Channel) executeSetVariableStatement(ctx *evalContext, statement sql.SetVariableStatement, params *paramSet) error {
	var value core.Value
	if statement.Query != nil {
		v, err := ch.scalarQuery(ctx, statement.Query, params)
		if err != nil {
			return err
		}
		value = v
	} else {
		b := &binder{ch: ch, params: params}
		e, err := b.bind(statement.Value)
		if err != nil {
			return err
		}
		if value, err = e.eval(ctx, nil); err != nil {
			return err
		}
	}
	return ch.setVariable(statement.Name, value)
}

// executeCallStatement evaluates the expression as a FROM-less query and
// returns its single value as a one-row result.
func (ch *Channel) executeCallStatement(ctx *evalContext, statement sql.CallStatement, params *paramSet) (*Result, core.Value, error) {
	query := &sql.SelectStatement{
		Items: []sql.SelectItem{{Expr: statement.Expr}},
		Limit: -1,
	}
	plan, err := ch.compileSelect(query, params)
	if err != nil {
		return nil, core.Value{}, err
	}
	rows, err := plan.execute(ctx)
	if err != nil {
		return nil, core.Value{}, err
	}
	return newQueryResult(plan.columns, rows, nil), rows[0][0], nil
}
