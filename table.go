package ygggo_mysqlrw

import (
	"context"
	"fmt"
	"strconv"
)

// Table bundles the everyday single-table operations around a DB.
type Table struct {
	DB            *DB
	Name          string
	PrimaryKey    string
	AutoIncrement bool
}

// NewTable returns a Table keyed by "id" with an auto increment primary key.
func NewTable(db *DB, name string) *Table {
	return &Table{DB: db, Name: name, PrimaryKey: "id", AutoIncrement: true}
}

func (t *Table) pk() string {
	if t.PrimaryKey == "" {
		return "id"
	}
	return t.PrimaryKey
}

// Insert inserts rec and returns its primary key: the value in rec when set,
// otherwise the generated id for auto increment tables.
func (t *Table) Insert(ctx context.Context, rec Record) (any, error) {
	t.DB.Insert(t.Name, rec)
	if !t.AutoIncrement {
		if _, err := t.DB.Exec(ctx); err != nil {
			return nil, err
		}
		if v, ok := rec.Get(t.pk()); ok {
			return v, nil
		}
		return int64(0), nil
	}
	id, err := t.DB.LastInsertID(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := rec.Get(t.pk()); ok {
		return v, nil
	}
	n, _ := strconv.ParseInt(id, 10, 64)
	return n, nil
}

func (t *Table) Update(ctx context.Context, id any, rec Record) (bool, error) {
	return t.DB.Update(t.Name, rec).Where(t.pk(), id).Exec(ctx)
}

func (t *Table) Delete(ctx context.Context, id any) (bool, error) {
	return t.DB.Delete(t.Name).Where(t.pk(), id).Exec(ctx)
}

func (t *Table) force(forceMaster bool) {
	if forceMaster {
		t.DB.ForceMaster()
	}
}

// GetOne fetches the row with primary key id.
func (t *Table) GetOne(ctx context.Context, id any, forceMaster bool) (Row, error) {
	t.force(forceMaster)
	return t.DB.Select().From(t.Name).Where(t.pk(), id).Fetch(ctx)
}

// GetMulti fetches the rows whose primary key is in ids.
func (t *Table) GetMulti(ctx context.Context, ids any, forceMaster bool) ([]Row, error) {
	t.force(forceMaster)
	return t.DB.Select().From(t.Name).Where(t.pk(), ids).FetchAll(ctx)
}

// GetPageList fetches one page of rows matching where.
func (t *Table) GetPageList(ctx context.Context, where Record, page, count int, orderBy, fields string, forceMaster bool) ([]Row, error) {
	t.force(forceMaster)
	d := t.DB.Select(fields).From(t.Name).MultiWhere(where)
	if orderBy != "" {
		d.OrderBy(orderBy)
	}
	return d.Page(page).Count(count).FetchAll(ctx)
}

// GetTotal counts the rows matching where.
func (t *Table) GetTotal(ctx context.Context, where Record, field string, forceMaster bool) (int64, error) {
	t.force(forceMaster)
	row, err := t.DB.SelectCount(field, "total").From(t.Name).MultiWhere(where).Fetch(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := row["total"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(fmt.Sprint(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("count of %s: %w", t.Name, err)
	}
	return n, nil
}

func (t *Table) GetAll(ctx context.Context, where Record, orderBy, fields string, forceMaster bool) ([]Row, error) {
	t.force(forceMaster)
	d := t.DB.Select(fields).From(t.Name).MultiWhere(where)
	if orderBy != "" {
		d.OrderBy(orderBy)
	}
	return d.FetchAll(ctx)
}

// GetRow fetches the first row matching where.
func (t *Table) GetRow(ctx context.Context, where Record, orderBy, fields string, forceMaster bool) (Row, error) {
	t.force(forceMaster)
	d := t.DB.Select(fields).From(t.Name).MultiWhere(where)
	if orderBy != "" {
		d.OrderBy(orderBy)
	}
	return d.Limit(1).Fetch(ctx)
}

func (t *Table) AffectedRows(ctx context.Context) (int64, error) {
	return t.DB.AffectedRows(ctx)
}

func (t *Table) UpdateWhere(ctx context.Context, where, rec Record) (bool, error) {
	return t.DB.MultiWhere(where).Update(t.Name, rec).Exec(ctx)
}

func (t *Table) InsertBatch(ctx context.Context, rows []Record) (bool, error) {
	return t.DB.InsertBatch(t.Name, rows, DefaultBatchSize).Exec(ctx)
}

func (t *Table) DeleteWhere(ctx context.Context, where Record) (bool, error) {
	return t.DB.MultiWhere(where).Delete(t.Name).Exec(ctx)
}

// UpdateBatch updates rows keyed by index, "id" when empty.
func (t *Table) UpdateBatch(ctx context.Context, rows []Record, index string, onceMaxCount int, forceString bool) (bool, error) {
	if index == "" {
		index = "id"
	}
	return t.DB.UpdateBatch(t.Name, rows, index, onceMaxCount, forceString).Exec(ctx)
}

func (t *Table) BeginTrans(ctx context.Context) error    { return t.DB.BeginTrans(ctx) }
func (t *Table) CommitTrans(ctx context.Context) error   { return t.DB.CommitTrans(ctx) }
func (t *Table) RollbackTrans(ctx context.Context) error { return t.DB.RollbackTrans(ctx) }
