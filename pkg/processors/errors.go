package processors

import (
	"errors"
	"fmt"
)

// Sentinel ошибки для errors.Is
var (
	// ErrConfigValidation - неизвестный, отсутствующий или невалидный параметр правила
	ErrConfigValidation = errors.New("config validation error")

	// ErrConfigReference - правило ссылается на отсутствующую таблицу или поле
	ErrConfigReference = errors.New("config reference error")
)

// ConfigValidationError - ошибка построения правила. Возникает до изменения таблицы.
type ConfigValidationError struct {
	RuleType string
	Param    string
	Value    any
	Message  string
	Err      error
}

func (e *ConfigValidationError) Error() string {
	msg := e.Message
	if e.Param != "" && e.Value != nil {
		msg = fmt.Sprintf("invalid value %v for param %s of rule_type %s", e.Value, e.Param, e.RuleType)
		if e.Message != "" {
			msg += ": " + e.Message
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigValidationError) Unwrap() error { return e.Err }

func (e *ConfigValidationError) Is(target error) bool { return target == ErrConfigValidation }

// unknownParam - параметр не зарегистрирован для типа правила
func unknownParam(ruleType, param string) error {
	return &ConfigValidationError{
		RuleType: ruleType,
		Param:    param,
		Message:  fmt.Sprintf("param %s not valid for rule_type %s", param, ruleType),
	}
}

// missingParam - обязательный параметр без значения по умолчанию
func missingParam(ruleType, param string) error {
	return &ConfigValidationError{
		RuleType: ruleType,
		Param:    param,
		Message:  fmt.Sprintf("param %s must be set", param),
	}
}

// invalidParam - значение не прошло проверку ограничения
func invalidParam(ruleType, param string, value any, cause error) error {
	return &ConfigValidationError{
		RuleType: ruleType,
		Param:    param,
		Value:    fmt.Sprintf("%q", fmt.Sprint(value)),
		Err:      cause,
	}
}

// crossError - ошибка перекрестной проверки параметров
func crossError(ruleType, format string, args ...any) error {
	return &ConfigValidationError{
		RuleType: ruleType,
		Message:  fmt.Sprintf("rule_type %s: ", ruleType) + fmt.Sprintf(format, args...),
	}
}

// ConfigReferenceError - отсутствует таблица-справочник или поле таблицы
type ConfigReferenceError struct {
	RuleType  string
	Reference string
	Message   string
	Err       error
}

func (e *ConfigReferenceError) Error() string {
	msg := fmt.Sprintf("rule_type %s: %s: %s", e.RuleType, e.Message, e.Reference)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigReferenceError) Unwrap() error { return e.Err }

func (e *ConfigReferenceError) Is(target error) bool { return target == ErrConfigReference }

// missingField - поле отсутствует в таблице
func missingField(ruleType, field string) error {
	return &ConfigReferenceError{RuleType: ruleType, Reference: field, Message: "field not found in table"}
}
