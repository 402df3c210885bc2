package loader

import (
	"fmt"
	"time"
)

// DefaultChunkRows : row bound of a chunk when none is configured
const DefaultChunkRows = 100_000

// ChunkTimeFormat : timestamp embedded in chunk file names
const ChunkTimeFormat = "20060102_150405"

// Chunk : consecutive slice of a table's rows staged and loaded as one unit
type Chunk struct {
	// Index : 1 based part number
	Index int
	Rows  [][]string
}

// Partition : splits rows into consecutive chunks of at most limit rows.
// The chunks share the backing array of rows, nothing is copied.
func Partition(rows [][]string, limit int) []Chunk {
	if limit <= 0 {
		limit = DefaultChunkRows
	}
	if len(rows) == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (len(rows)+limit-1)/limit)
	for start := 0; start < len(rows); start += limit {
		end := start + limit
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks) + 1,
			Rows:  rows[start:end:end],
		})
	}
	return chunks
}

// ChunkFileName : <TABLE>_<runTimestamp>_part_<3 digit index>.csv
func ChunkFileName(tableName string, runAt time.Time, part int) string {
	return fmt.Sprintf("%s_%s_part_%03d.csv", tableName, runAt.Format(ChunkTimeFormat), part)
}
