package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Report - упорядоченный отчет запуска
type Report []*Entry

// ByCategory - записи указанной категории
func (r Report) ByCategory(category Category) Report {
	var out Report
	for _, e := range r {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Summary - агрегаты отчета
type Summary struct {
	Entries    int              `json:"entries"`
	ByCategory map[Category]int `json:"by_category"`
	ByRule     map[string]int   `json:"by_rule"`
	// Records - количество затронутых строк по категориям
	Records map[Category]int `json:"records"`
}

// Summary - посчитать агрегаты
func (r Report) Summary() Summary {
	s := Summary{
		Entries:    len(r),
		ByCategory: make(map[Category]int),
		ByRule:     make(map[string]int),
		Records:    make(map[Category]int),
	}
	for _, e := range r {
		s.ByCategory[e.Category]++
		key := e.RuleType
		if e.Field != "" {
			key += ":" + e.Field
		}
		s.ByRule[key]++
		s.Records[e.Category] += e.RecordsAffected
	}
	return s
}

// String - краткое текстовое представление сводки
func (s Summary) String() string {
	parts := make([]string, 0, len(Categories))
	for _, c := range Categories {
		if n := s.ByCategory[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d(%d rows)", c, n, s.Records[c]))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, " ")
}

// Rules - ключи правил в отсортированном порядке
func (s Summary) Rules() []string {
	keys := make([]string, 0, len(s.ByRule))
	for k := range s.ByRule {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReportHeader - колонки табличного представления отчета
var ReportHeader = []string{
	"id", "timestamp", "rule_type", "field", "category", "description", "records_affected", "row_ids",
}

// Rows - табличное представление отчета (CSV, XLSX)
func (r Report) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, e := range r {
		ids := make([]string, len(e.RowIDs))
		for i, id := range e.RowIDs {
			ids[i] = strconv.Itoa(id)
		}
		rows = append(rows, []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339),
			e.RuleType,
			e.Field,
			string(e.Category),
			e.Description,
			strconv.Itoa(e.RecordsAffected),
			strings.Join(ids, ","),
		})
	}
	return rows
}

// WriteCSV - записать отчет в CSV
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	if err := cw.WriteAll(r.Rows()); err != nil {
		return fmt.Errorf("failed to write report rows: %w", err)
	}
	return nil
}

// WriteJSON - записать отчет в JSON
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
