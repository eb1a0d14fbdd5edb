package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// QuoteIdent double-quotes a PostgreSQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Excluded references the row proposed for insertion in an ON CONFLICT clause.
func Excluded(column string) any {
	return sqlbuilder.Raw("EXCLUDED." + column)
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

// OnConflict appends ON CONFLICT (...) DO UPDATE and returns the update to fill in.
func (b *InsertBuilder) OnConflict(columns ...string) *UpdateBuilder {
	ub := NewUpdateBuilder()
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE %s", strings.Join(columns, ", "), b.Var(ub)))
	return ub
}

// OverwriteWith makes the conflicting row take the proposed values of columns.
// extra assignments are appended as they are.
func (ub *UpdateBuilder) OverwriteWith(columns []string, extra ...string) {
	assignments := make([]string, 0, len(columns)+len(extra))
	for _, column := range columns {
		assignments = append(assignments, ub.Assign(column, Excluded(column)))
	}
	ub.Set(append(assignments, extra...)...)
}

type UpdateBuilder struct {
	*sqlbuilder.UpdateBuilder
}

func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{sqlbuilder.PostgreSQL.NewUpdateBuilder()}
}

type SelectBuilder struct {
	*sqlbuilder.SelectBuilder
}

func NewSelectBuilder() *SelectBuilder {
	return &SelectBuilder{sqlbuilder.PostgreSQL.NewSelectBuilder()}
}

// Struct maps a db-tagged row type onto PostgreSQL statements.
type Struct struct {
	*sqlbuilder.Struct
}

func NewStruct(v any) *Struct {
	return &Struct{sqlbuilder.NewStruct(v).For(sqlbuilder.PostgreSQL)}
}

func (s *Struct) SelectFrom(table string) *SelectBuilder {
	return &SelectBuilder{s.Struct.SelectFrom(table)}
}

func (s *Struct) InsertInto(table string, v ...any) *InsertBuilder {
	return &InsertBuilder{s.Struct.InsertInto(table, v...)}
}
