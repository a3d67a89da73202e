package predictor

// SetSnapshotWriter swaps the snapshot file writer and returns a restore func.
func SetSnapshotWriter(write func(path string, data []byte) error) func() {
	prev := writeSnapshotFile
	writeSnapshotFile = write
	return func() { writeSnapshotFile = prev }
}
