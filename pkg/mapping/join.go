package mapping

import (
	"context"
	"strings"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/uxon"
)

const (
	JoinLeft  = "left"
	JoinRight = "right"
)

type joinConfig struct {
	Type                     string         `json:"type" validate:"omitempty,oneof=left right LEFT RIGHT"`
	JoinDataSheet            map[string]any `json:"join_data_sheet" validate:"required"`
	JoinInputDataOnAttribute string         `json:"join_input_data_on_attribute" validate:"required"`
	JoinDataSheetOnAttribute string         `json:"join_data_sheet_on_attribute" validate:"required"`
}

// JoinMapping joins a separately read sheet into the to-sheet like a SQL left or
// right join. Its semantics are not final and may still change.
type JoinMapping struct {
	base
	joinType  string
	sheet     *datasheet.DataSheet
	inputKey  *expression.Expression
	joinedKey *expression.Expression
}

func newJoinMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[joinConfig](config)
	if err != nil {
		return nil, err
	}

	sheet, err := datasheet.FromUxon(s.model, uxon.Object(cfg.JoinDataSheet))
	if err != nil {
		return nil, errors.WrapMappingError(err).AddField("join_data_sheet")
	}
	inputKey, err := parseExpression(cfg.JoinInputDataOnAttribute, s.to, "join_input_data_on_attribute")
	if err != nil {
		return nil, err
	}
	joinedKey, err := parseExpression(cfg.JoinDataSheetOnAttribute, sheet.Object(), "join_data_sheet_on_attribute")
	if err != nil {
		return nil, err
	}
	sheet.AddColumnExpression(joinedKey)

	joinType := strings.ToLower(cfg.Type)
	if joinType == "" {
		joinType = JoinLeft
	}

	return &JoinMapping{
		base:      newBase(TypeJoin, config, joinType+" join "+sheet.ObjectAlias()+" on "+describe(inputKey, joinedKey)),
		joinType:  joinType,
		sheet:     sheet,
		inputKey:  inputKey,
		joinedKey: joinedKey,
	}, nil
}

func (m *JoinMapping) Map(ctx context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	joined := m.sheet.Copy()
	if joined.IsEmpty() && !joined.IsFresh() {
		if env.Reader == nil {
			return nil, m.fail(errors.NewMappingFailedError("no data reader to read the join sheet").AddCode(errors.CodeReaderMissing), from, to)
		}
		if err := env.Reader.Read(ctx, joined); err != nil {
			return nil, m.fail(errors.NewMappingFailedErrorf("reading join sheet of '%s': %w", joined.ObjectAlias(), err).AddCode(errors.CodeReadFailed), from, to)
		}
		log.AddLinef("Read %d rows of '%s' to join", joined.CountRows(), joined.ObjectAlias())
	}

	inputCol, ok := to.GetColumnByExpression(m.inputKey)
	if !ok {
		return nil, m.fail(errors.NewMappingFailedErrorf("join column '%s' not found in to-sheet", m.inputKey).
			AddField(m.inputKey.String()).
			AddCode(errors.CodeFromAttributeNotFound), from, to)
	}
	joinedCol, ok := joined.GetColumnByExpression(m.joinedKey)
	if !ok {
		return nil, m.fail(errors.NewConfigurationErrorf("join column '%s' not found in join sheet of '%s'", m.joinedKey, joined.ObjectAlias()).
			AddField("join_data_sheet_on_attribute"), from, to)
	}

	if m.joinType == JoinLeft {
		if err := to.JoinLeft(joined, inputCol.Name, joinedCol.Name); err != nil {
			return nil, m.fail(err, from, to)
		}
		log.AddLinef("Left joined %s: %d rows", joined.ObjectAlias(), to.CountRows())
		return to, nil
	}

	if err := joined.JoinLeft(to, joinedCol.Name, inputCol.Name); err != nil {
		return nil, m.fail(err, from, to)
	}
	result := to.CopyStructure()
	result.AddRows(joined.Rows())
	log.AddLinef("Right joined %s: %d rows", joined.ObjectAlias(), result.CountRows())
	return result, nil
}
