//go:build js

package pipeline

import "errors"

var errParquetUnavailable = errors.New("parquet output is not available in the wasm build; use format csv")

func writeEventsParquet(string, []eventRow) error {
	return errParquetUnavailable
}

func marshalEventsParquet([]eventRow) ([]byte, error) {
	return nil, errParquetUnavailable
}
