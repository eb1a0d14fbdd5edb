package mapperdefinition

import (
	"database/sql"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/lib/pq"
)

func FromMapperDefinition(definition models.MapperDefinition) *MapperDefinitionRow {
	return &MapperDefinitionRow{
		ID:          sql.NullString{String: definition.ID, Valid: definition.ID != ""},
		TenantID:    sql.NullString{String: definition.TenantID, Valid: definition.TenantID != ""},
		UserID:      sql.NullString{String: definition.UserID, Valid: definition.UserID != ""},
		Version:     sql.NullInt64{Int64: int64(definition.Version), Valid: definition.Version != 0},
		Key:         sql.NullString{String: definition.Key, Valid: definition.Key != ""},
		Name:        sql.NullString{String: definition.Name, Valid: definition.Name != ""},
		Description: sql.NullString{String: definition.Description, Valid: definition.Description != ""},
		Tags:        pq.StringArray(definition.Tags),
		IsActive:    sql.NullBool{Bool: definition.IsActive, Valid: true},
		IsDeleted:   sql.NullBool{Bool: definition.IsDeleted, Valid: true},
		CreatedTS:   sql.NullTime{Time: definition.CreatedTS, Valid: !definition.CreatedTS.IsZero()},
		UpdatedTS:   sql.NullTime{Time: definition.UpdatedTS, Valid: !definition.UpdatedTS.IsZero()},
		Config:      database.NewJSONB(definition.Config),
	}
}

type MapperDefinitionRow struct {
	ID          sql.NullString              `db:"id"`
	TenantID    sql.NullString              `db:"tenant_id"`
	UserID      sql.NullString              `db:"user_id"`
	Version     sql.NullInt64               `db:"version"`
	Key         sql.NullString              `db:"key"`
	Name        sql.NullString              `db:"name"`
	Description sql.NullString              `db:"description"`
	Tags        pq.StringArray              `db:"tags"`
	IsActive    sql.NullBool                `db:"is_active"`
	IsDeleted   sql.NullBool                `db:"is_deleted"`
	CreatedTS   sql.NullTime                `db:"created_at"`
	UpdatedTS   sql.NullTime                `db:"updated_at"`
	Config      database.JSONB[uxon.Object] `db:"config"`
}

const (
	mapperDefinitionTable = "mapper_definitions"
)

var mapperDefinitionStruct = database.NewStruct(new(MapperDefinitionRow))

func ToMapperDefinition(row *MapperDefinitionRow) models.MapperDefinition {
	tags := []string(row.Tags)
	if tags == nil {
		tags = []string{}
	}

	return models.MapperDefinition{
		MapperDefinitionFields: models.MapperDefinitionFields{
			ID:          row.ID.String,
			TenantID:    row.TenantID.String,
			UserID:      row.UserID.String,
			Version:     int(row.Version.Int64),
			Key:         row.Key.String,
			Name:        row.Name.String,
			Description: row.Description.String,
			Tags:        tags,
			IsActive:    row.IsActive.Bool,
			IsDeleted:   row.IsDeleted.Bool,
			CreatedTS:   row.CreatedTS.Time.UTC(),
			UpdatedTS:   row.UpdatedTS.Time.UTC(),
		},
		Config: row.Config.Data,
	}
}
