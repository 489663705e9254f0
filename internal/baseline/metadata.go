package baseline

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"goldref/internal/result"
)

// Metadata is the content of a baseline's _metadata.txt.
type Metadata struct {
	CaseID      string
	EndTime     float64
	Timestep    float64
	Fingerprint string // Empty when the record says checksum=null
	SignalCount int
	// Signals lists table stems in save order. Nil when the baseline was
	// written without a manifest.
	Signals []string
	// Names holds the signal names in the same order as Signals. Nil for
	// baselines that predate the names line; their stems double as names.
	Names []string
}

func writeMetadata(path string, meta Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}
	defer f.Close()

	checksum := meta.Fingerprint
	if checksum == "" {
		checksum = "null"
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "circuit=%s\n", meta.CaseID)
	fmt.Fprintf(w, "simulationTime=%s\n", result.FormatDecimal(meta.EndTime))
	fmt.Fprintf(w, "timestep=%s\n", result.FormatDecimal(meta.Timestep))
	fmt.Fprintf(w, "checksum=%s\n", checksum)
	fmt.Fprintf(w, "signalCount=%d\n", meta.SignalCount)
	fmt.Fprintf(w, "signals=%s\n", strings.Join(meta.Signals, ","))
	escaped := make([]string, len(meta.Names))
	for i, name := range meta.Names {
		escaped[i] = url.QueryEscape(name)
	}
	fmt.Fprintf(w, "names=%s\n", strings.Join(escaped, ","))
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return f.Close()
}

func readMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	var meta Metadata
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "circuit":
			meta.CaseID = value
		case "simulationTime":
			if meta.EndTime, err = result.ParseDecimal(value); err != nil {
				return meta, fmt.Errorf("metadata %s: simulationTime: %w", path, err)
			}
		case "timestep":
			if meta.Timestep, err = result.ParseDecimal(value); err != nil {
				return meta, fmt.Errorf("metadata %s: timestep: %w", path, err)
			}
		case "checksum":
			if value != "null" {
				meta.Fingerprint = value
			}
		case "signalCount":
			if meta.SignalCount, err = strconv.Atoi(value); err != nil {
				return meta, fmt.Errorf("metadata %s: signalCount: %w", path, err)
			}
		case "signals":
			meta.Signals = []string{}
			for _, stem := range strings.Split(value, ",") {
				if stem = strings.TrimSpace(stem); stem != "" {
					meta.Signals = append(meta.Signals, stem)
				}
			}
		case "names":
			meta.Names = []string{}
			if value == "" {
				continue
			}
			for _, raw := range strings.Split(value, ",") {
				name, err := url.QueryUnescape(raw)
				if err != nil {
					return meta, fmt.Errorf("metadata %s: names: %w", path, err)
				}
				meta.Names = append(meta.Names, name)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return meta, fmt.Errorf("read metadata: %w", err)
	}
	return meta, nil
}

func writeSignal(path string, s result.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create signal table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.WriteString("time,value\n")
	times, values := s.Time(), s.Values()
	for i := range times {
		w.WriteString(result.FormatDecimal(times[i]))
		w.WriteByte(',')
		w.WriteString(result.FormatDecimal(values[i]))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write signal table %s: %w", s.Name(), err)
	}
	return f.Close()
}

// readSignal parses a "time,value" table. The header and rows without
// exactly two fields are skipped.
func readSignal(path string) ([]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open signal table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var times, values []float64
	header := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) != 2 {
			continue
		}
		t, err := result.ParseDecimal(rec[0])
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		v, err := result.ParseDecimal(rec[1])
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		times = append(times, t)
		values = append(values, v)
	}
	return times, values, nil
}
