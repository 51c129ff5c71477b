package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/store"
)

// witnessDoc is the JSON witness-set document accepted on the command
// line and by the HTTP API.
type witnessDoc struct {
	Witnesses []store.WitnessInput `json:"witnesses"`
}

// loadWitnesses reads witness inputs from CLI arguments. Each argument
// may be a JSON witness-set document, a directory of .txt files (one
// witness per file, ID from the filename), or a single plain-text file.
// Ingestion order follows the argument order; directory entries are
// sorted by name.
func loadWitnesses(args []string) ([]store.WitnessInput, error) {
	var inputs []store.WitnessInput
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		switch {
		case info.IsDir():
			ws, err := loadWitnessDir(arg)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, ws...)
		case strings.EqualFold(filepath.Ext(arg), ".json"):
			ws, err := loadWitnessDoc(arg)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, ws...)
		default:
			w, err := loadWitnessFile(arg)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, w)
		}
	}
	if len(inputs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no witnesses found in %s", strings.Join(args, ", "))
	}
	return inputs, nil
}

func loadWitnessDir(dir string) ([]store.WitnessInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	inputs := make([]store.WitnessInput, 0, len(names))
	for _, name := range names {
		w, err := loadWitnessFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, w)
	}
	return inputs, nil
}

func loadWitnessFile(path string) (store.WitnessInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.WitnessInput{}, fmt.Errorf("read witness %s: %w", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return store.WitnessInput{
		ID:   id,
		Text: string(data),
		Meta: map[string]any{"source": path},
	}, nil
}

func loadWitnessDoc(path string) ([]store.WitnessInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read witness set %s: %w", path, err)
	}
	var doc witnessDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse witness set %s", path)
	}
	if len(doc.Witnesses) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "witness set %s names no witnesses", path)
	}
	for i, w := range doc.Witnesses {
		if w.ID == "" {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "witness %d in %s has no id", i, path)
		}
	}
	return doc.Witnesses, nil
}
