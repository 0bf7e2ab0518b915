package btree

import "errors"

var (
	ErrEntryNotFound  = errors.New("btree: entry not found")
	ErrDuplicateKey   = errors.New("btree: duplicate key")
	ErrEmptyTree      = errors.New("btree: tree is empty")
	ErrCorruptedIndex = errors.New("btree: corrupted index file")
)
