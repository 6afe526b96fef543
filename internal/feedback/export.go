package feedback

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVFilename is the attachment name used for exports.
const CSVFilename = "EduMood_Feedback_Data.csv"

var csvHeader = []string{"timestamp", "feedback", "emotion", "reasoning"}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Feedback,
			string(r.Emotion),
			r.Reasoning,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
