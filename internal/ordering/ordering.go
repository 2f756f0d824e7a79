// Package ordering maintains dense zero-based position sequences for
// ordered collections. A scope is the set of rows sharing one parent
// (categories in a workspace, tasks in a category, subtasks under a
// parent task); within a scope positions are exactly 0..count-1.
package ordering

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ScopeFilter narrows a query to one ordered collection.
type ScopeFilter func(*gorm.DB) *gorm.DB

// NextPosition returns max(position)+1 inside the scope, or 0 when the
// scope is empty. Must run on the same transaction as the insert it feeds.
func NextPosition(ctx context.Context, tx *gorm.DB, table string, scope ScopeFilter) (int, error) {
	var next int
	err := scope(tx.WithContext(ctx).Table(table)).
		Select("COALESCE(MAX(position)+1, 0)").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// ShiftUpFrom moves every row in scope with position >= index up by one,
// excluding the row being placed. The moved row must already be written
// with its final position before this runs.
func ShiftUpFrom(ctx context.Context, tx *gorm.DB, table string, scope ScopeFilter, index int, exclude snowflake.ID) error {
	return scope(tx.WithContext(ctx).Table(table)).
		Where("position >= ?", index).
		Where("id <> ?", exclude).
		UpdateColumn("position", gorm.Expr("position + 1")).Error
}

// CloseGapAfter moves every row in scope with position > position down by
// one, closing the hole left by a removed or relocated row.
func CloseGapAfter(ctx context.Context, tx *gorm.DB, table string, scope ScopeFilter, position int) error {
	return scope(tx.WithContext(ctx).Table(table)).
		Where("position > ?", position).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
}

// Renumber assigns position = list index to each id, one update per id.
// Callers must have verified the ids form exactly one scope.
func Renumber(ctx context.Context, tx *gorm.DB, table string, ids []snowflake.ID) error {
	for index, id := range ids {
		err := tx.WithContext(ctx).Table(table).
			Where("id = ?", id).
			UpdateColumn("position", index).Error
		if err != nil {
			return err
		}
	}
	return nil
}
