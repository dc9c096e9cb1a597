package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/WalterDeAlmeidaLira/TechChallenge/models"
)

// Load reads a persisted dataset from its CSV file. A file whose header does
// not match the expected field set is rejected.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = delimiter
	reader.FieldsPerRecord = len(header)

	got, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	if err := validateHeader(got); err != nil {
		return nil, err
	}

	var books []models.Book
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset record: %w", err)
		}

		book, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("dataset line %d: %w", line, err)
		}
		books = append(books, book)
	}

	return &Dataset{books: books}, nil
}

func validateHeader(got []string) error {
	if len(got) != len(header) {
		return fmt.Errorf("dataset header has %d fields, want %d", len(got), len(header))
	}
	for i, name := range header {
		if got[i] != name {
			return fmt.Errorf("dataset header field %d is %q, want %q", i, got[i], name)
		}
	}
	return nil
}

func parseRecord(record []string) (models.Book, error) {
	id, err := strconv.Atoi(record[0])
	if err != nil {
		return models.Book{}, fmt.Errorf("invalid id %q", record[0])
	}
	price, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return models.Book{}, fmt.Errorf("invalid price %q", record[2])
	}
	rating, err := strconv.Atoi(record[3])
	if err != nil {
		return models.Book{}, fmt.Errorf("invalid rating %q", record[3])
	}
	availability, err := strconv.Atoi(record[4])
	if err != nil {
		return models.Book{}, fmt.Errorf("invalid availability %q", record[4])
	}

	return models.Book{
		ID:           id,
		Title:        record[1],
		Price:        price,
		Rating:       rating,
		Availability: availability,
		Category:     record[5],
		ImageURL:     record[6],
		URL:          record[7],
	}, nil
}
