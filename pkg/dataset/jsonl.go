package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// maxLineSize - предел одной строки JSONL (длинные ответы модели).
const maxLineSize = 4 << 20

// WriteJSONL записывает датасет целиком.
//
// Пишет во временный файл рядом с path и переименовывает его,
// так что читатель никогда не увидит наполовину записанный датасет.
func WriteJSONL(path string, records []Record) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op после успешного Rename

	w := bufio.NewWriter(tmp)
	if err := Encode(w, records); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	return nil
}

// Encode пишет записи по одной JSON строке.
func Encode(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode record #%d: %w", i, err)
		}
	}
	return nil
}

// ReadJSONL читает весь датасет. Пустые строки пропускаются.
func ReadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var records []Record
	err = scan(f, func(lineNo int, line []byte) (bool, error) {
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return false, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, r)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// LoadSystemMessage возвращает системное сообщение первой записи датасета.
func LoadSystemMessage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var system string
	found := false
	err = scan(f, func(lineNo int, line []byte) (bool, error) {
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return false, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(r.Messages) == 0 {
			return false, fmt.Errorf("line %d: no messages", lineNo)
		}
		system = r.Messages[0].Content
		found = true
		return false, nil
	})
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if !found {
		return "", fmt.Errorf("dataset %s is empty", path)
	}
	return system, nil
}

// scan вызывает fn для каждой непустой строки, пока fn возвращает true.
func scan(r io.Reader, fn func(lineNo int, line []byte) (bool, error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		more, err := fn(lineNo, line)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("line %d exceeds %d bytes: %w", lineNo+1, maxLineSize, err)
		}
		return err
	}
	return nil
}

// UserPrompts возвращает prompts всех записей.
func UserPrompts(records []Record) []string {
	prompts := make([]string, 0, len(records))
	for _, r := range records {
		if p := r.User(); p != "" {
			prompts = append(prompts, p)
		}
	}
	return prompts
}

// Sample выбирает до n элементов без повторений.
// Если элементов меньше n, возвращаются все в случайном порядке.
// Исходный срез не меняется.
func Sample(items []string, n int, rng *rand.Rand) []string {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}

	idx := rng.Perm(len(items))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
