package util

import (
	"fmt"

	"github.com/jobala/kiln/storage/disk"
	"github.com/vmihailenco/msgpack"
)

// ToByteSlice msgpack-encodes obj into a disk.PageSize buffer, so the
// result can be copied straight into a page's frame. It is meant for
// metadata pages (file headers, catalog entries) -- anything small and
// read/written as a whole, as opposed to a node page's hand-rolled
// fixed-stride layout.
func ToByteSlice[T any](obj T) ([]byte, error) {
	res := make([]byte, disk.PageSize)

	data, err := msgpack.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshaling page payload: %w", err)
	}
	if len(data) > len(res) {
		return nil, fmt.Errorf("encoded payload of %d bytes exceeds page size %d", len(data), len(res))
	}
	copy(res, data)

	return res, nil
}

func ToStruct[T any](data []byte) (T, error) {
	var res T

	if err := msgpack.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("unmarshaling page payload: %w", err)
	}

	return res, nil
}
