//go:build !js

package pipeline

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type eventParquetRow struct {
	Index      int64   `parquet:"name=index, type=INT64"`
	TSUTCISO   string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElapsedS   float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	Confidence float64 `parquet:"name=confidence, type=DOUBLE"`
	Bout       int64   `parquet:"name=bout, type=INT64"`
}

func writeEventsParquet(path string, rows []eventRow) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	if err := encodeEventsParquet(fw, rows); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func marshalEventsParquet(rows []eventRow) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := encodeEventsParquet(fw, rows); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

func encodeEventsParquet(fw source.ParquetFile, rows []eventRow) error {
	pw, err := writer.NewParquetWriter(fw, new(eventParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		row := eventParquetRow{
			Index:      int64(r.Index),
			TSUTCISO:   r.TSUTCISO,
			ElapsedS:   r.ElapsedS,
			Confidence: r.Confidence,
			Bout:       int64(r.Bout),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}
