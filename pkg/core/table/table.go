// Package table - колоночное представление таблицы, над которой работают правила очистки.
//
// Строки адресуются позицией (0..Len()-1) и стабильным идентификатором (RowIDs),
// который переживает замену колонок и сортировку, но не удаление строки.
package table

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
)

// Column - именованная колонка. nil в Values означает NULL.
type Column struct {
	Name   string
	Type   schema.DataType
	Values []any
}

// NewColumn создает колонку
func NewColumn(name string, typ schema.DataType, values []any) *Column {
	if typ == "" {
		typ = schema.TypeText
	}
	return &Column{Name: name, Type: typ, Values: values}
}

// Clone возвращает копию колонки
func (c *Column) Clone() *Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Type: c.Type, Values: values}
}

// Table - упорядоченный набор колонок одинаковой длины
type Table struct {
	columns []*Column
	ids     []int
	nextID  int
}

// New создает таблицу из колонок. Все колонки должны иметь одинаковую длину
// и уникальные имена.
func New(columns ...*Column) (*Table, error) {
	t := &Table{}
	rows := -1
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column name: %s", c.Name)
		}
		seen[c.Name] = true
		if rows >= 0 && len(c.Values) != rows {
			return nil, fmt.Errorf("column %s has %d rows, expected %d", c.Name, len(c.Values), rows)
		}
		rows = len(c.Values)
		t.columns = append(t.columns, c)
	}
	if rows < 0 {
		rows = 0
	}
	t.ids = make([]int, rows)
	for i := range t.ids {
		t.ids[i] = i
	}
	t.nextID = rows
	return t, nil
}

// FromRows строит текстовую таблицу из заголовка и строк
func FromRows(header []string, rows [][]any) (*Table, error) {
	cols := make([]*Column, len(header))
	for i, name := range header {
		cols[i] = NewColumn(name, schema.TypeText, make([]any, len(rows)))
	}
	for r, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(header))
		}
		for i, v := range row {
			cols[i].Values[r] = v
		}
	}
	return New(cols...)
}

// Len возвращает количество строк
func (t *Table) Len() int {
	return len(t.ids)
}

// Columns возвращает колонки в порядке объявления
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnNames возвращает имена колонок
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Index возвращает позицию колонки или -1
func (t *Table) Index(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column возвращает колонку по имени
func (t *Table) Column(name string) (*Column, bool) {
	if i := t.Index(name); i >= 0 {
		return t.columns[i], true
	}
	return nil, false
}

// HasColumn проверяет наличие колонки
func (t *Table) HasColumn(name string) bool {
	return t.Index(name) >= 0
}

// ResolveField разрешает ссылку на поле: сначала по имени,
// затем как позиционный индекс колонки.
func (t *Table) ResolveField(ref string) (string, bool) {
	if t.HasColumn(ref) {
		return ref, true
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(t.columns) {
		return t.columns[i].Name, true
	}
	return ref, false
}

// RowIDs возвращает идентификаторы строк по позициям
func (t *Table) RowIDs() []int {
	ids := make([]int, len(t.ids))
	copy(ids, t.ids)
	return ids
}

// RowID возвращает идентификатор строки в позиции pos
func (t *Table) RowID(pos int) int {
	return t.ids[pos]
}

// Row возвращает значения строки в порядке колонок
func (t *Table) Row(pos int) []any {
	row := make([]any, len(t.columns))
	for i, c := range t.columns {
		row[i] = c.Values[pos]
	}
	return row
}

// Value возвращает значение ячейки
func (t *Table) Value(column string, pos int) any {
	c, ok := t.Column(column)
	if !ok {
		return nil
	}
	return c.Values[pos]
}

// Set записывает значение ячейки
func (t *Table) Set(column string, pos int, v any) error {
	c, ok := t.Column(column)
	if !ok {
		return fmt.Errorf("column not found: %s", column)
	}
	c.Values[pos] = v
	return nil
}

// UniqueName возвращает имя колонки, не конфликтующее с существующими
func (t *Table) UniqueName(base string) string {
	if !t.HasColumn(base) {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if !t.HasColumn(name) {
			return name
		}
	}
}

// AddColumn добавляет колонку в конец таблицы
func (t *Table) AddColumn(c *Column) error {
	if t.HasColumn(c.Name) {
		return fmt.Errorf("column already exists: %s", c.Name)
	}
	if len(c.Values) != t.Len() {
		return fmt.Errorf("column %s has %d rows, table has %d", c.Name, len(c.Values), t.Len())
	}
	t.columns = append(t.columns, c)
	return nil
}

// ReplaceColumn заменяет значения колонки, сохраняя ее позицию и идентификаторы строк
func (t *Table) ReplaceColumn(name string, values []any) error {
	c, ok := t.Column(name)
	if !ok {
		return fmt.Errorf("column not found: %s", name)
	}
	if len(values) != t.Len() {
		return fmt.Errorf("column %s: got %d values, table has %d rows", name, len(values), t.Len())
	}
	c.Values = values
	return nil
}

// DropColumn удаляет колонку
func (t *Table) DropColumn(name string) error {
	i := t.Index(name)
	if i < 0 {
		return fmt.Errorf("column not found: %s", name)
	}
	t.columns = append(t.columns[:i], t.columns[i+1:]...)
	return nil
}

// RemoveRows удаляет строки по позициям. Порядок остальных строк сохраняется.
func (t *Table) RemoveRows(positions []int) {
	if len(positions) == 0 {
		return
	}
	drop := make(map[int]bool, len(positions))
	for _, p := range positions {
		drop[p] = true
	}
	keep := make([]int, 0, t.Len()-len(drop))
	for pos := range t.ids {
		if !drop[pos] {
			keep = append(keep, pos)
		}
	}
	t.reorder(keep)
}

// AppendRow добавляет строку и возвращает ее новый идентификатор
func (t *Table) AppendRow(values []any) (int, error) {
	if len(values) != len(t.columns) {
		return 0, fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}
	for i, c := range t.columns {
		c.Values = append(c.Values, values[i])
	}
	id := t.nextID
	t.nextID++
	t.ids = append(t.ids, id)
	return id, nil
}

// SortBy стабильно переупорядочивает строки по функции сравнения позиций
func (t *Table) SortBy(less func(a, b int) bool) {
	order := make([]int, t.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return less(order[i], order[j])
	})
	t.reorder(order)
}

// Subset возвращает независимую копию строк в указанных позициях (с их идентификаторами)
func (t *Table) Subset(positions []int) *Table {
	sub := &Table{nextID: t.nextID}
	for _, c := range t.columns {
		values := make([]any, len(positions))
		for i, p := range positions {
			values[i] = c.Values[p]
		}
		sub.columns = append(sub.columns, &Column{Name: c.Name, Type: c.Type, Values: values})
	}
	sub.ids = make([]int, len(positions))
	for i, p := range positions {
		sub.ids[i] = t.ids[p]
	}
	return sub
}

// Clone возвращает полную независимую копию таблицы
func (t *Table) Clone() *Table {
	c := &Table{nextID: t.nextID, ids: make([]int, len(t.ids))}
	copy(c.ids, t.ids)
	for _, col := range t.columns {
		c.columns = append(c.columns, col.Clone())
	}
	return c
}

// Swap заменяет содержимое таблицы содержимым other
func (t *Table) Swap(other *Table) {
	t.columns, t.ids, t.nextID = other.columns, other.ids, other.nextID
}

// reorder оставляет строки в позициях order в указанном порядке
func (t *Table) reorder(order []int) {
	for _, c := range t.columns {
		values := make([]any, len(order))
		for i, p := range order {
			values[i] = c.Values[p]
		}
		c.Values = values
	}
	ids := make([]int, len(order))
	for i, p := range order {
		ids[i] = t.ids[p]
	}
	t.ids = ids
}
