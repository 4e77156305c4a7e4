package pipeline

import "fmt"

// EmptyDatasetError is returned when the dataset has no edges to build a
// graph from. Input-invalid-dataset, fatal.
type EmptyDatasetError struct{}

func (e *EmptyDatasetError) Error() string { return "pipeline: dataset has no edges" }

// FromIndexError reports a dataset edge whose "from" id could not be used
// as a node index. Input-invalid-dataset, fatal.
type FromIndexError struct {
	EdgeID uint64
}

func (e *FromIndexError) Error() string {
	return fmt.Sprintf("pipeline: edge %d: from-index not representable", e.EdgeID)
}

// ToIndexError reports a dataset edge whose "to" id could not be used as a
// node index. Input-invalid-dataset, fatal.
type ToIndexError struct {
	EdgeID uint64
}

func (e *ToIndexError) Error() string {
	return fmt.Sprintf("pipeline: edge %d: to-index not representable", e.EdgeID)
}

// InvalidRateError reports a dataset edge with a non-finite or
// non-positive rate. Input-invalid-dataset, fatal.
type InvalidRateError struct {
	EdgeID uint64
	Rate   float64
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("pipeline: edge %d: invalid rate %v", e.EdgeID, e.Rate)
}

// ProducerJoinError wraps a producer task failure. Task-join, fatal.
type ProducerJoinError struct {
	Cause error
}

func (e *ProducerJoinError) Error() string { return fmt.Sprintf("pipeline: producer task: %v", e.Cause) }
func (e *ProducerJoinError) Unwrap() error { return e.Cause }

// WriterJoinError wraps a writer task failure. Task-join, fatal.
type WriterJoinError struct {
	Cause error
}

func (e *WriterJoinError) Error() string { return fmt.Sprintf("pipeline: writer task: %v", e.Cause) }
func (e *WriterJoinError) Unwrap() error { return e.Cause }

// SearcherJoinError wraps a searcher task failure. Task-join, fatal.
type SearcherJoinError struct {
	Cause error
}

func (e *SearcherJoinError) Error() string { return fmt.Sprintf("pipeline: searcher task: %v", e.Cause) }
func (e *SearcherJoinError) Unwrap() error { return e.Cause }
