package scrub

import (
	"errors"
	"fmt"
)

// ErrTooManyRecords - таблица превышает profile.maximum_records
var ErrTooManyRecords = errors.New("too many records")

// TooManyRecordsError возвращается до выполнения первого правила
type TooManyRecordsError struct {
	Records int
	Maximum int
}

func (e *TooManyRecordsError) Error() string {
	return fmt.Sprintf("%s: table has %d records, maximum_records is %d", ErrTooManyRecords, e.Records, e.Maximum)
}

// Is позволяет errors.Is(err, ErrTooManyRecords)
func (e *TooManyRecordsError) Is(target error) bool {
	return target == ErrTooManyRecords
}
