package dataset

import "io"

// ResultRecord is one benchmark measurement: a strategy run over the test
// queries of a dataset.
type ResultRecord struct {
	Dataset    string  `parquet:"dataset"`
	Index      string  `parquet:"index"`
	Members    int32   `parquet:"members"`
	Strategy   string  `parquet:"strategy"`
	Threshold  float64 `parquet:"threshold"`
	K          int32   `parquet:"k"`
	Queries    int32   `parquet:"queries"`
	Recall     float64 `parquet:"recall"`
	MeanNanos  float64 `parquet:"mean_nanos"`
	StdNanos   float64 `parquet:"std_nanos"`
	MinNanos   int64   `parquet:"min_nanos"`
	MaxNanos   int64   `parquet:"max_nanos"`
	Candidates float64 `parquet:"mean_candidates"`
	Found      float64 `parquet:"mean_found"`
}

// WriteResults writes benchmark measurements.
func WriteResults(w io.Writer, rows []ResultRecord) error {
	return write(w, rows)
}

// ReadResults reads measurements written by WriteResults.
func ReadResults(r io.ReaderAt, size int64) ([]ResultRecord, error) {
	return read[ResultRecord](r, size)
}
