package services

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tatsoft-analytics/internal/models"
	"tatsoft-analytics/internal/store"
)

const cacheVersion = "v2"

// cacheEntry holds parsed records only. Pipeline output is always recomputed.
type cacheEntry struct {
	Fingerprint string
	Source      string
	Sales       []models.SaleRecord
	Products    []models.ProductStat
	Clients     []models.ClientStat
	Report      store.LoadReport
}

// fingerprint identifies the exact input files by path, size and mtime.
func fingerprint(paths ...string) (string, error) {
	var b strings.Builder
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		fmt.Fprintf(&b, "%s|%d|%d;", p, info.Size(), info.ModTime().UnixNano())
	}
	return b.String(), nil
}

func cacheFilename(dir, salesPath string) string {
	name := strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(filepath.Clean(salesPath))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func saveCache(dir, salesPath, fp string, data *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	filename := cacheFilename(dir, salesPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	entry := cacheEntry{
		Fingerprint: fp,
		Source:      data.Source,
		Sales:       data.Sales,
		Products:    data.Products,
		Clients:     data.Clients,
		Report:      data.Report,
	}
	if err := gob.NewEncoder(tmp).Encode(&entry); err != nil {
		tmp.Close()
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

// loadCache returns the cached dataset when its fingerprint still matches.
func loadCache(dir, salesPath, fp string) (*Dataset, error) {
	file, err := os.Open(cacheFilename(dir, salesPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entry cacheEntry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if entry.Fingerprint != fp {
		return nil, fmt.Errorf("cache is stale")
	}

	return &Dataset{
		Sales:    entry.Sales,
		Products: entry.Products,
		Clients:  entry.Clients,
		Report:   entry.Report,
		Source:   entry.Source,
	}, nil
}
