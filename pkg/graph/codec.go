package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Encode writes v as indented JSON followed by a newline.
func Encode(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(v, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(path string, v any) error {
	data, err := marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// readFile opens path and hands it to read.
func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return read(f)
}

// decode reads one JSON value from r into v and runs check on it.
func decode[T any](r io.Reader, what string, check func(T) error) (T, error) {
	var v, zero T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return zero, fmt.Errorf("decode %s: %w", what, err)
	}
	if err := check(v); err != nil {
		return zero, err
	}
	return v, nil
}
