package keyvaluedb

import (
	"errors"
	"reflect"
)

var (
	ErrEmptyKey = errors.New("key is empty")
	ErrNilValue = errors.New("value is nil")
)

// CheckKey rejects nil and zero length keys up front so all backends fail
// the same way instead of each reporting its own storage level error.
func CheckKey(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return nil
}

// CheckValue rejects a typed nil pointer, which would otherwise encode as
// null and silently store nothing useful.
func CheckValue(value any) error {
	if value == nil {
		return ErrNilValue
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ErrNilValue
	}
	return nil
}

func CheckKeyAndValue(key []byte, value any) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	return CheckValue(value)
}
