package export

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lucasjlepore/ridelab"
)

type sampleParquetRow struct {
	ElapsedS     float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	DistanceM    float64 `parquet:"name=distance_m, type=DOUBLE"`
	HeartRateBPM float64 `parquet:"name=heart_rate_bpm, type=DOUBLE"`
	PowerW       float64 `parquet:"name=power_w, type=DOUBLE"`
	CadenceRPM   float64 `parquet:"name=cadence_rpm, type=DOUBLE"`
	SpeedMPS     float64 `parquet:"name=speed_mps, type=DOUBLE"`
	AltitudeM    float64 `parquet:"name=altitude_m, type=DOUBLE"`
	GradePct     float64 `parquet:"name=grade_pct, type=DOUBLE"`
	TemperatureC float64 `parquet:"name=temperature_c, type=DOUBLE"`
	Lat          float64 `parquet:"name=lat, type=DOUBLE"`
	Lng          float64 `parquet:"name=lng, type=DOUBLE"`
}

// marshalSamplesParquet encodes the aligned per-sample table as SNAPPY
// Parquet. Absent columns and dropouts stay NaN.
func marshalSamplesParquet(stream *ridelab.ActivityStream) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(sampleParquetRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := range stream.Time {
		row := sampleParquetRow{
			ElapsedS:     stream.Time[i],
			DistanceM:    sampleAt(stream.Distance, i),
			HeartRateBPM: sampleAt(stream.HeartRate, i),
			PowerW:       sampleAt(stream.Power, i),
			CadenceRPM:   sampleAt(stream.Cadence, i),
			SpeedMPS:     sampleAt(stream.Speed, i),
			AltitudeM:    sampleAt(stream.Altitude, i),
			GradePct:     sampleAt(stream.Grade, i),
			TemperatureC: sampleAt(stream.Temperature, i),
			Lat:          sampleAt(stream.Lat, i),
			Lng:          sampleAt(stream.Lng, i),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
