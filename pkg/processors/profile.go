package processors

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Profile - пороги количества записей для всего прогона и для нечетких стадий
type Profile struct {
	MaximumRecords               int `yaml:"maximum_records" json:"maximum_records" validate:"gt=0"`
	MaximumRecordsClosestMatches int `yaml:"maximum_records_closest_matches" json:"maximum_records_closest_matches" validate:"gte=0"`
	LookalikeNumberRecords       int `yaml:"lookalike_number_records" json:"lookalike_number_records" validate:"gte=0"`
	MaximumRecordsLookalike      int `yaml:"maximum_records_lookalike" json:"maximum_records_lookalike" validate:"gte=0"`
	MaximumFileRecordsLookalike  int `yaml:"maximum_file_records_lookalike" json:"maximum_file_records_lookalike" validate:"gte=0"`
}

// DefaultProfile возвращает профиль со значениями по умолчанию
func DefaultProfile() Profile {
	return Profile{
		MaximumRecords:               1000000,
		MaximumRecordsClosestMatches: 1000,
		LookalikeNumberRecords:       100,
		MaximumRecordsLookalike:      1000,
		MaximumFileRecordsLookalike:  100000,
	}
}

// SetDefaults заполняет незаданные (нулевые) пороги значениями по умолчанию
func (p *Profile) SetDefaults() {
	d := DefaultProfile()
	if p.MaximumRecords == 0 {
		p.MaximumRecords = d.MaximumRecords
	}
	if p.MaximumRecordsClosestMatches == 0 {
		p.MaximumRecordsClosestMatches = d.MaximumRecordsClosestMatches
	}
	if p.LookalikeNumberRecords == 0 {
		p.LookalikeNumberRecords = d.LookalikeNumberRecords
	}
	if p.MaximumRecordsLookalike == 0 {
		p.MaximumRecordsLookalike = d.MaximumRecordsLookalike
	}
	if p.MaximumFileRecordsLookalike == 0 {
		p.MaximumFileRecordsLookalike = d.MaximumFileRecordsLookalike
	}
}

// Validate проверяет пороги
func (p Profile) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	return nil
}
