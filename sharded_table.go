package ygggo_mysqlrw

import (
	"context"
	"fmt"
	"hash/crc32"
	"strconv"
)

// DefaultShardCount is the shard count used when none is given.
const DefaultShardCount = 100

// ShardedTable spreads one logical table over Count physical tables named
// <Name>_<n>, where n is crc32(shard key) % Count left padded with zeros to
// the number of digits in Count. Every operation takes the shard key first
// and runs on that shard through a Table.
//
//	orders := ygggo_mysqlrw.NewShardedTable(db, "orders", 100)
//	orders.TableName("user-42") // "orders_031" style names
type ShardedTable struct {
	DB            *DB
	Name          string
	PrimaryKey    string
	AutoIncrement bool
	Count         int
	// Width is the zero padded width of the shard suffix; 0 means the
	// number of digits in Count.
	Width int
}

// NewShardedTable returns a ShardedTable keyed by an auto increment "id".
// A non-positive count means DefaultShardCount.
func NewShardedTable(db *DB, name string, count int) *ShardedTable {
	return &ShardedTable{DB: db, Name: name, PrimaryKey: "id", AutoIncrement: true, Count: count}
}

func (s *ShardedTable) count() int {
	if s.Count <= 0 {
		return DefaultShardCount
	}
	return s.Count
}

// ShardIndex returns the shard number of shardKey. Keys are hashed in
// their fmt.Sprint form, so 42 and "42" share a shard.
func (s *ShardedTable) ShardIndex(shardKey any) int {
	sum := crc32.ChecksumIEEE([]byte(fmt.Sprint(shardKey)))
	return int(sum % uint32(s.count()))
}

// TableName returns the physical table holding shardKey.
func (s *ShardedTable) TableName(shardKey any) string {
	width := s.Width
	if width <= 0 {
		width = len(strconv.Itoa(s.count()))
	}
	return fmt.Sprintf("%s_%0*d", s.Name, width, s.ShardIndex(shardKey))
}

// Shard returns the Table for the shard holding shardKey.
func (s *ShardedTable) Shard(shardKey any) *Table {
	return &Table{
		DB:            s.DB,
		Name:          s.TableName(shardKey),
		PrimaryKey:    s.PrimaryKey,
		AutoIncrement: s.AutoIncrement,
	}
}

func (s *ShardedTable) Insert(ctx context.Context, shardKey any, rec Record) (any, error) {
	return s.Shard(shardKey).Insert(ctx, rec)
}

func (s *ShardedTable) Update(ctx context.Context, shardKey, id any, rec Record) (bool, error) {
	return s.Shard(shardKey).Update(ctx, id, rec)
}

func (s *ShardedTable) Delete(ctx context.Context, shardKey, id any) (bool, error) {
	return s.Shard(shardKey).Delete(ctx, id)
}

func (s *ShardedTable) GetOne(ctx context.Context, shardKey, id any, forceMaster bool) (Row, error) {
	return s.Shard(shardKey).GetOne(ctx, id, forceMaster)
}

// GetMulti fetches the rows of one shard whose primary key is in ids.
func (s *ShardedTable) GetMulti(ctx context.Context, shardKey, ids any, forceMaster bool) ([]Row, error) {
	return s.Shard(shardKey).GetMulti(ctx, ids, forceMaster)
}
