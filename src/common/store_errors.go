package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// StoreErrType enumerates the failure kinds shared by the storage layers.
type StoreErrType uint32

const (
	// KeyNotFound is returned when an item is absent from a store.
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists is returned when an insert would overwrite an item.
	KeyAlreadyExists
	// Empty is returned when a collection has no items.
	Empty
	// Closed is returned when a store is used after Close.
	Closed
)

// StoreErr describes a failed store operation on a given key.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case Empty:
		m = "Empty"
	case Closed:
		m = "Closed"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// Key returns the key the error refers to.
func (e StoreErr) Key() string {
	return e.key
}

// IsStore checks that an error is, or wraps, a StoreErr and that its code
// matches the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	var storeErr StoreErr
	return errors.As(err, &storeErr) && storeErr.errType == t
}
