package ordering

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type item struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	BucketID snowflake.ID `gorm:"index"`
	Name     string
	Position int
}

func (item) TableName() string { return "items" }

type harness struct {
	db     *gorm.DB
	node   *snowflake.Node
	bucket snowflake.ID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&item{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &harness{db: db, node: node, bucket: node.Generate()}
}

func (h *harness) scope() ScopeFilter {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("bucket_id = ?", h.bucket)
	}
}

// append inserts a row at the end of the bucket the way services do it:
// NextPosition and the insert on one transaction.
func (h *harness) append(t *testing.T, name string) snowflake.ID {
	t.Helper()
	id := h.node.Generate()
	err := h.db.Transaction(func(tx *gorm.DB) error {
		pos, err := NextPosition(context.Background(), tx, "items", h.scope())
		if err != nil {
			return err
		}
		return tx.Create(&item{ID: id, BucketID: h.bucket, Name: name, Position: pos}).Error
	})
	require.NoError(t, err)
	return id
}

func (h *harness) order(t *testing.T) []string {
	t.Helper()
	var items []item
	require.NoError(t, h.db.
		Where("bucket_id = ?", h.bucket).
		Order("position ASC").
		Find(&items).Error)
	names := make([]string, 0, len(items))
	for i, it := range items {
		require.Equal(t, i, it.Position, "positions must stay dense")
		names = append(names, it.Name)
	}
	return names
}

func TestNextPosition_StartsAtZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pos, err := NextPosition(ctx, h.db, "items", h.scope())
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	h.append(t, "a")
	h.append(t, "b")

	pos, err = NextPosition(ctx, h.db, "items", h.scope())
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestNextPosition_ScopesAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.append(t, "a")

	other := h.node.Generate()
	otherScope := ScopeFilter(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("bucket_id = ?", other)
	})
	pos, err := NextPosition(context.Background(), h.db, "items", otherScope)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

func TestShiftUpFrom_MakesRoomAtIndex(t *testing.T) {
	h := newHarness(t)
	h.append(t, "a")
	h.append(t, "b")
	h.append(t, "c")

	// Place a new row at index 1: write it first, then shift the rest.
	id := h.node.Generate()
	err := h.db.Transaction(func(tx *gorm.DB) error {
		ctx := context.Background()
		if err := tx.Create(&item{ID: id, BucketID: h.bucket, Name: "x", Position: 1}).Error; err != nil {
			return err
		}
		return ShiftUpFrom(ctx, tx, "items", h.scope(), 1, id)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "x", "b", "c"}, h.order(t))
}

func TestCloseGapAfter_CompactsRemoval(t *testing.T) {
	h := newHarness(t)
	h.append(t, "a")
	b := h.append(t, "b")
	h.append(t, "c")
	h.append(t, "d")

	err := h.db.Transaction(func(tx *gorm.DB) error {
		ctx := context.Background()
		if err := tx.Delete(&item{}, "id = ?", b).Error; err != nil {
			return err
		}
		return CloseGapAfter(ctx, tx, "items", h.scope(), 1)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "d"}, h.order(t))
}

func TestRenumber_AssignsListIndex(t *testing.T) {
	h := newHarness(t)
	a := h.append(t, "a")
	b := h.append(t, "b")
	c := h.append(t, "c")

	require.NoError(t, Renumber(context.Background(), h.db, "items", []snowflake.ID{c, a, b}))

	assert.Equal(t, []string{"c", "a", "b"}, h.order(t))
}

func TestNilLocker_GuardIsNoOp(t *testing.T) {
	var l *Locker

	release, err := l.Guard(context.Background(), "ordering:test", time.Second)
	require.NoError(t, err)
	release()
}
