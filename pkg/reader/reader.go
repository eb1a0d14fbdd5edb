// Package reader fills data sheets from a data source. Mappers use readers to
// prefetch missing columns and to read join and lookup sheets.
package reader

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/samber/lo"
)

type Reader interface {
	// Read replaces the sheet's rows with the data matching its filters. Only the
	// sheet's columns are read; a sheet without columns reads every attribute.
	Read(ctx context.Context, sheet *datasheet.DataSheet) error
}

// Memory serves sheets registered per object alias.
type Memory struct {
	sources map[string]*datasheet.DataSheet
	mu      sync.RWMutex
}

func NewMemory(sources ...*datasheet.DataSheet) *Memory {
	m := &Memory{sources: map[string]*datasheet.DataSheet{}}
	for _, s := range sources {
		m.Add(s)
	}
	return m
}

func (m *Memory) Add(source *datasheet.DataSheet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[strings.ToUpper(source.ObjectAlias())] = source
}

func (m *Memory) Read(ctx context.Context, sheet *datasheet.DataSheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	source, ok := m.sources[strings.ToUpper(sheet.ObjectAlias())]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no data for object '%s'", sheet.ObjectAlias())
	}

	matching, err := source.Extract(sheet.Filters())
	if err != nil {
		return err
	}

	if !sheet.HasColumns() {
		for _, c := range matching.Columns() {
			col := sheet.AddColumnExpression(c.Expression())
			col.Hidden = c.Hidden
		}
	}

	rows := lo.Map(matching.Rows(), func(_ datasheet.Row, i int) datasheet.Row {
		projected := datasheet.Row{}
		for _, c := range sheet.Columns() {
			v, _ := matching.CellValue(c.Name, i)
			projected[c.Name] = v
		}
		return projected
	})

	sheet.SetRows(rows)
	sheet.SetFresh(true)
	return nil
}
