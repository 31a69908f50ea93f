package tableio

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/packet"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// multiPartRe - имена вида base_part_N_of_Total.ext
var multiPartRe = regexp.MustCompile(`^(.+)_part_(\d+)_of_(\d+)(\..+)$`)

// FromPacket - построить таблицу из TDTP пакета.
// Значения, не подходящие под тип поля, сохраняются текстом.
func FromPacket(pkt *packet.DataPacket) (*table.Table, error) {
	rows := pkt.Rows()

	columns := make([]*table.Column, len(pkt.Schema.Fields))
	for i, f := range pkt.Schema.Fields {
		columns[i] = table.NewColumn(f.Name, schema.DataType(f.Type), make([]any, len(rows)))
	}

	for r, values := range rows {
		if len(values) > len(columns) {
			return nil, fmt.Errorf("row %d has %d values, schema has %d fields", r, len(values), len(columns))
		}
		for i, raw := range values {
			v, err := schema.ParseCell(raw, columns[i].Type)
			if err != nil {
				v = raw
			}
			columns[i].Values[r] = v
		}
	}

	return table.New(columns...)
}

// ToPackets - разбить таблицу на TDTP пакеты типа reference
func ToPackets(t *table.Table, opts Options) ([]*packet.DataPacket, error) {
	sch := packet.Schema{Fields: make([]packet.Field, len(t.Columns()))}
	for i, c := range t.Columns() {
		sch.Fields[i] = packet.Field{Name: c.Name, Type: string(c.Type)}
	}

	rows := make([][]string, t.Len())
	for pos := range rows {
		row := make([]string, len(t.Columns()))
		for i, c := range t.Columns() {
			row[i] = schema.FormatCell(c.Values[pos], c.Type)
		}
		rows[pos] = row
	}

	name := opts.TableName
	if name == "" {
		name = "data"
	}

	g := packet.NewGenerator()
	g.SetMaxMessageSize(opts.MaxMessageSize)
	g.SetCompression(opts.Compression)
	return g.Generate(packet.TypeReference, name, sch, rows)
}

// loadTDTP - прочитать TDTP файл или весь набор его частей
func loadTDTP(path string) (*table.Table, error) {
	files := multiPartFiles(path)
	if files == nil {
		files = []string{path}
	}

	parser := packet.NewParser()
	var merged *packet.DataPacket
	for _, fp := range files {
		pkt, err := parser.ParseFile(fp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TDTP file '%s': %w", fp, err)
		}
		if merged == nil {
			merged = pkt
			continue
		}
		if !packet.SchemaEquals(merged.Schema, pkt.Schema) {
			return nil, fmt.Errorf("file '%s': schema differs from first part", fp)
		}
		merged.Data.Rows = append(merged.Data.Rows, pkt.Data.Rows...)
	}

	return FromPacket(merged)
}

// saveTDTP - записать таблицу одним файлом или частями
func saveTDTP(t *table.Table, path string, opts Options) error {
	packets, err := ToPackets(t, opts)
	if err != nil {
		return err
	}

	g := packet.NewGenerator()
	if len(packets) == 1 {
		return g.WriteToFile(packets[0], path)
	}

	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i, pkt := range packets {
		name := fmt.Sprintf("%s_part_%d_of_%d%s", base, i+1, len(packets), ext)
		if err := g.WriteToFile(pkt, name); err != nil {
			return fmt.Errorf("failed to write part %d: %w", i+1, err)
		}
	}
	return nil
}

// multiPartFiles - все части набора, если путь указывает на одну из частей
// или на базовое имя. nil для одиночного файла.
func multiPartFiles(path string) []string {
	var base, ext string
	var total int

	if m := multiPartRe.FindStringSubmatch(path); m != nil {
		base = m[1]
		ext = m[4]
		total, _ = strconv.Atoi(m[3])
	} else {
		ext = filepath.Ext(path)
		base = path[:len(path)-len(ext)]
		matches, err := filepath.Glob(fmt.Sprintf("%s_part_1_of_*%s", base, ext))
		if err == nil && len(matches) == 1 {
			if m := multiPartRe.FindStringSubmatch(matches[0]); m != nil {
				total, _ = strconv.Atoi(m[3])
			}
		}
	}

	if total < 2 {
		return nil
	}

	parts := make([]string, total)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s_part_%d_of_%d%s", base, i+1, total, ext)
	}
	return parts
}
