package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"property-monitor/models"
	"property-monitor/utils"
)

const LatestExportName = "listings_latest.csv"

var csvHeader = []string{"url", "price", "location", "rooms", "size", "retrieved_at", "description"}

// CSVWriter exports finalized tables as CSV files in a directory.
type CSVWriter struct {
	dir string
}

func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir}
}

// ExportPath is the export file of a run: its start time to the second
// plus the first eight characters of the run ID, so runs started in the
// same second keep separate files.
func (w *CSVWriter) ExportPath(b *models.ScrapeBatch) string {
	id := b.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(w.dir, "listings_"+b.RunAt.UTC().Format("20060102-150405")+"_"+id+".csv")
}

func (w *CSVWriter) LatestPath() string {
	return filepath.Join(w.dir, LatestExportName)
}

// Export writes the table of b to its timestamped file and then replaces
// the latest file. Both files are written to a temp file first and renamed
// into place, so readers never see a partial file. An empty table gives a
// header-only file.
func (w *CSVWriter) Export(b *models.ScrapeBatch) (string, error) {
	rows, err := finalizedRows(b)
	if err != nil {
		return "", err
	}

	// Create output directory if needed (e.g. "output/" folder)
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("could not create output dir: %w", err)
	}

	path := w.ExportPath(b)
	size, err := writeCSVAtomic(path, rows)
	if err != nil {
		return "", err
	}
	if _, err := writeCSVAtomic(w.LatestPath(), rows); err != nil {
		return path, err
	}

	utils.Success("Saved %d listings → %s (%s)", len(rows), path, humanize.Bytes(uint64(size)))
	return path, nil
}

func writeCSVAtomic(path string, rows []models.Listing) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.csv")
	if err != nil {
		return 0, fmt.Errorf("could not create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	writer.Write(csvHeader)
	for _, l := range rows {
		writer.Write(csvRecord(l))
	}
	writer.Flush()

	if err := writer.Error(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("csv write error: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("csv write error: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("csv write error: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("could not replace %s: %w", path, err)
	}
	return info.Size(), nil
}

// csvRecord renders one row; unknown rooms and size are empty cells.
func csvRecord(l models.Listing) []string {
	rooms, size := "", ""
	if l.Rooms != nil {
		rooms = strconv.Itoa(*l.Rooms)
	}
	if l.Size != nil {
		size = strconv.FormatFloat(*l.Size, 'f', 1, 64)
	}
	return []string{
		l.URL,
		strconv.FormatFloat(l.Price, 'f', 2, 64),
		l.Location,
		rooms,
		size,
		l.RetrievedAt.UTC().Format(time.RFC3339),
		l.Description,
	}
}
