package processors

import (
	"context"
	"crypto/rsa"
	"io"
	"strings"
	"time"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/ruslano69/tdtp-scrubber/pkg/crypto"
)

// datePad - строка, полученная из даты в колонке строки (соль хеша, pad шифрования)
type datePad struct {
	field  string
	format schema.DateFormat
}

// bindDatePad проверяет пару параметров "<prefix>_field" / "<prefix>_format"
func bindDatePad(r *Rule, fieldParam, formatParam string) (*datePad, error) {
	field, format := r.Params.String(fieldParam), r.Params.String(formatParam)
	if field == "" {
		return nil, nil
	}
	if format == "" {
		return nil, crossError(r.Type, "%s requires %s", fieldParam, formatParam)
	}
	df, err := schema.NewDateFormat(format)
	if err != nil {
		return nil, invalidParam(r.Type, formatParam, format, err)
	}
	return &datePad{field: field, format: df}, nil
}

// resolve находит колонку даты; ее отсутствие - ConfigReferenceError
func (p *datePad) resolve(r *Rule, t *table.Table) (*table.Column, error) {
	name, ok := t.ResolveField(p.field)
	if !ok {
		return nil, missingField(r.Type, p.field)
	}
	col, _ := t.Column(name)
	return col, nil
}

// value форматирует дату ячейки. Значение, которое не разбирается как дата, берется как есть.
func (p *datePad) value(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return p.format.Format(val)
	case string:
		s := strings.TrimSpace(val)
		for _, typ := range []schema.DataType{schema.TypeTimestamp, schema.TypeDate} {
			if parsed, err := schema.ParseCell(s, typ); err == nil && parsed != nil {
				return p.format.Format(parsed.(time.Time))
			}
		}
		return val
	}
	return table.Text(v)
}

// hashStage заменяет значения на усеченный соленый SHA-256
type hashStage struct {
	enabled bool
	length  int
	salt    string
	pad     *datePad
}

func (s *hashStage) Name() string { return "hash" }

func (s *hashStage) Fields() []Field {
	return []Field{
		Optional("hash", false, BoolParam()),
		Optional("hash_length", 16, IntRange(1, crypto.MaxDigestLength)),
		Optional("salt", "", StringParam()),
		Optional("salt_date_field", "", StringParam()),
		Optional("salt_date_format", "", StringParam()),
	}
}

func (s *hashStage) Bind(_ context.Context, r *Rule) error {
	s.enabled = r.Params.Bool("hash")
	s.length = r.Params.Int("hash_length")
	s.salt = r.Params.String("salt")

	pad, err := bindDatePad(r, "salt_date_field", "salt_date_format")
	if err != nil {
		return err
	}
	if pad != nil && s.salt != "" {
		return crossError(r.Type, "salt and salt_date_field are mutually exclusive")
	}
	s.pad = pad
	return nil
}

func (s *hashStage) Run(_ context.Context, r *Rule, t *table.Table, column, _ string) error {
	if !s.enabled {
		return nil
	}

	var saltCol *table.Column
	if s.pad != nil {
		col, err := s.pad.resolve(r, t)
		if err != nil {
			return err
		}
		saltCol = col
	}

	dst, _ := t.Column(column)
	var hashed []int
	for i, v := range dst.Values {
		if v == nil {
			continue
		}
		salt := s.salt
		if saltCol != nil {
			salt = s.pad.value(saltCol.Values[i])
		}
		dst.Values[i] = crypto.Digest(salt, table.Text(v), s.length)
		hashed = append(hashed, i)
	}
	if len(hashed) > 0 {
		dst.Type = schema.TypeText
	}
	r.logRows(t, hashed, audit.CategoryModified, "value hashed")
	return nil
}

// encryptStage шифрует значения открытым ключом RSA
type encryptStage struct {
	enabled bool
	key     *rsa.PublicKey
	random  string
	pad     *datePad
}

func (s *encryptStage) Name() string { return "encrypt" }

func (s *encryptStage) Fields() []Field {
	return []Field{
		Optional("encrypt", false, BoolParam()),
		Optional("public_key", "", StringParam()),
		Optional("random_string", "", StringParam()),
		Optional("random_string_date_field", "", StringParam()),
		Optional("random_string_date_format", "", StringParam()),
	}
}

func (s *encryptStage) Bind(_ context.Context, r *Rule) error {
	s.enabled = r.Params.Bool("encrypt")
	if !s.enabled {
		return nil
	}

	source := r.Params.String("public_key")
	if source == "" {
		return crossError(r.Type, "encrypt requires public_key")
	}
	key, err := crypto.LoadPublicKey(source)
	if err != nil {
		return &ConfigValidationError{RuleType: r.Type, Message: "failed to load public_key", Err: err}
	}
	s.key = key

	s.random = r.Params.String("random_string")
	pad, err := bindDatePad(r, "random_string_date_field", "random_string_date_format")
	if err != nil {
		return err
	}
	if pad != nil && s.random != "" {
		return crossError(r.Type, "random_string and random_string_date_field are mutually exclusive")
	}
	s.pad = pad
	return nil
}

func (s *encryptStage) Run(_ context.Context, r *Rule, t *table.Table, column, _ string) error {
	if !s.enabled {
		return nil
	}

	var padCol *table.Column
	if s.pad != nil {
		col, err := s.pad.resolve(r, t)
		if err != nil {
			return err
		}
		padCol = col
	}

	dst, _ := t.Column(column)
	var encrypted []int
	for i, v := range dst.Values {
		if v == nil {
			continue
		}
		plaintext := table.Text(v)

		var random io.Reader
		switch {
		case padCol != nil:
			random = crypto.NewDeterministicReader(s.pad.value(padCol.Values[i]), plaintext)
		case s.random != "":
			random = crypto.NewDeterministicReader(s.random, plaintext)
		}

		ct, err := crypto.EncryptValue(s.key, plaintext, random)
		if err != nil {
			return err
		}
		dst.Values[i] = ct
		encrypted = append(encrypted, i)
	}
	if len(encrypted) > 0 {
		dst.Type = schema.TypeText
	}
	r.logRows(t, encrypted, audit.CategoryModified, "value encrypted")
	return nil
}

// decryptStage расшифровывает значения поля до основного преобразования
type decryptStage struct {
	enabled bool
	key     *rsa.PrivateKey
}

func (s *decryptStage) Name() string { return "decrypt" }

func (s *decryptStage) Fields() []Field {
	return []Field{
		Optional("decrypt", false, BoolParam()),
		Optional("private_key", "", StringParam()),
	}
}

func (s *decryptStage) Bind(_ context.Context, r *Rule) error {
	s.enabled = r.Params.Bool("decrypt")
	if !s.enabled {
		return nil
	}
	source := r.Params.String("private_key")
	if source == "" {
		return crossError(r.Type, "decrypt requires private_key")
	}
	key, err := crypto.LoadPrivateKey(source)
	if err != nil {
		return &ConfigValidationError{RuleType: r.Type, Message: "failed to load private_key", Err: err}
	}
	s.key = key
	return nil
}

func (s *decryptStage) Run(_ context.Context, r *Rule, t *table.Table, column, _ string) error {
	if !s.enabled {
		return nil
	}

	col, _ := t.Column(column)
	var decrypted, failed []int
	for i, v := range col.Values {
		if table.IsBlank(v) {
			continue
		}
		plaintext, err := crypto.DecryptValue(s.key, table.Text(v))
		if err != nil {
			failed = append(failed, i)
			continue
		}
		col.Values[i] = plaintext
		decrypted = append(decrypted, i)
	}
	r.logRows(t, decrypted, audit.CategoryModified, "value decrypted")
	r.logRows(t, failed, audit.CategoryIgnored, "value could not be decrypted")
	return nil
}
